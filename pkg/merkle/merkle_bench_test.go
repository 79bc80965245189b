package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkMerkleTreeBuild benchmarks merkle tree construction with various sizes
func BenchmarkMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestHashes(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(leaves)
			}
		})
	}
}

// BenchmarkMerkleProofGeneration benchmarks proof generation
func BenchmarkMerkleProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000, 4096}

	for _, size := range sizes {
		tree, _ := BuildMerkleTree(createTestHashes(size))

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkMerkleProofVerification benchmarks proof verification
func BenchmarkMerkleProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000, 4096}

	for _, size := range sizes {
		tree, _ := BuildMerkleTree(createTestHashes(size))
		proof, _ := tree.GenerateProof(size - 1)

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(proof, tree.Root)
			}
		})
	}
}

// BenchmarkIntervalTreeBuild benchmarks interval tree construction
func BenchmarkIntervalTreeBuild(b *testing.B) {
	leaves := createIntervalLeaves(1000)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = BuildIntervalTree(leaves)
	}
}
