package trieproof

import "errors"

var errDeleteUnsupported = errors.New("node list does not support delete")

// NodeList collects trie nodes in the order a prover writes them, which is
// root first. It satisfies ethdb.KeyValueWriter so it can be handed directly
// to trie.Prove.
type NodeList [][]byte

func (n *NodeList) Put(_ []byte, value []byte) error {
	*n = append(*n, append([]byte(nil), value...))
	return nil
}

func (n *NodeList) Delete([]byte) error {
	return errDeleteUnsupported
}
