package tests

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// AnvilDevKey is the private key of the first prefunded anvil account.
const AnvilDevKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type AnvilConfig struct {
	PortNumber string `json:"portNumber"`
	ChainId    string `json:"chainId"`
	// BlockTime switches from automine to interval mining when set.
	BlockTime string `json:"blockTime"`
}

// AnvilAvailable reports whether the anvil binary is on PATH.
func AnvilAvailable() bool {
	_, err := exec.LookPath("anvil")
	return err == nil
}

// StartAnvil starts a fresh dev chain and waits until it answers RPC calls.
// It returns the running command and its RPC URL.
func StartAnvil(ctx context.Context, cfg *AnvilConfig) (*exec.Cmd, string, error) {
	args := []string{
		"--chain-id", cfg.ChainId,
		"--port", cfg.PortNumber,
	}
	if cfg.BlockTime != "" {
		args = append(args, "--block-time", cfg.BlockTime)
	}
	fmt.Printf("Starting anvil with args: %v\n", args)
	cmd := exec.CommandContext(ctx, "anvil", args...)
	cmd.Stderr = os.Stderr

	if os.Getenv("JOIN_ANVIL_OUTPUT") == "true" {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("failed to start anvil: %w", err)
	}

	rpcUrl := fmt.Sprintf("http://127.0.0.1:%s", cfg.PortNumber)

	for i := 1; i < 10; i++ {
		if ready(ctx, rpcUrl) {
			fmt.Println("Anvil is up and running")
			return cmd, rpcUrl, nil
		}
		fmt.Printf("Anvil not ready yet, retrying... %d\n", i)
		time.Sleep(time.Second * time.Duration(i))
	}

	_ = KillAnvil(cmd)
	return nil, "", fmt.Errorf("failed to start anvil")
}

func ready(ctx context.Context, rpcUrl string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.ChainID(ctx)
	return err == nil
}

func KillAnvil(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("anvil command is not running")
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill anvil process: %w", err)
	}
	_ = cmd.Wait()

	fmt.Println("Anvil process killed successfully")
	return nil
}
