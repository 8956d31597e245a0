// Command oracle-trigger is the off-chain driver of the ChaosOracle registry.
// Without a wallet it performs a read-only scan: registered markets that are
// ready for settlement and studios that can be closed. With a trigger wallet
// it also performs the due lifecycle transitions, presenting the configured
// run id as the authorization proof.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"

	registryrpc "github.com/chaos-oracle/oracle-contract/rpc/registry"
	settlementrpc "github.com/chaos-oracle/oracle-contract/rpc/settlement"
)

func main() {
	endpoint := flag.String("rpc", "", "Network address of the Neo RPC server")
	registryHash := flag.String("registry", "", "ChaosOracle Registry contract hash (LE)")
	walletPath := flag.String("wallet", "", "Trigger wallet; omit for a read-only scan")
	walletPass := flag.String("password", "", "Trigger wallet password")
	runIDFlag := flag.String("run-id", "", "Run id (UUID) presented as the authorization proof")

	flag.Parse()

	switch {
	case *endpoint == "":
		log.Fatal("missing Neo RPC endpoint")
	case *registryHash == "":
		log.Fatal("missing registry contract hash")
	}

	hub, err := util.Uint160DecodeStringLE(*registryHash)
	if err != nil {
		log.Fatal(fmt.Errorf("invalid registry contract hash: %w", err))
	}

	var proof []byte
	if *runIDFlag != "" {
		id, err := uuid.Parse(*runIDFlag)
		if err != nil {
			log.Fatal(fmt.Errorf("invalid run id: %w", err))
		}
		proof = id[:]
	}

	c, err := rpcclient.New(context.Background(), *endpoint, rpcclient.Options{
		DialTimeout:    15 * time.Second,
		RequestTimeout: 15 * time.Second,
	})
	if err != nil {
		log.Fatal(fmt.Errorf("RPC client dial: %w", err))
	}
	defer c.Close()

	err = run(c, hub, *walletPath, *walletPass, proof)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *rpcclient.Client, hub util.Uint160, walletPath, walletPass string, proof []byte) error {
	inv := invoker.New(c, nil)
	reg := registryrpc.NewReader(inv, hub)

	settlementHash, err := reg.SettlementContract()
	if err != nil {
		return fmt.Errorf("get settlement contract: %w", err)
	}
	settlement := settlementrpc.NewReader(inv, settlementHash)

	ready, err := reg.GetMarketsReadyForSettlement()
	if err != nil {
		return fmt.Errorf("get ready markets: %w", err)
	}
	active, err := reg.GetActiveStudios()
	if err != nil {
		return fmt.Errorf("get active studios: %w", err)
	}

	closable := make([][]byte, 0, len(active))
	for _, key := range active {
		ok, err := reg.CanCloseStudio(key)
		if err != nil {
			return fmt.Errorf("check studio %s: %w", settlementrpc.FormatStudioKey(key), err)
		}
		if ok {
			closable = append(closable, key)
		}
	}

	printState(settlement, ready, active, closable)

	if walletPath == "" {
		return nil
	}

	act, err := triggerActor(c, walletPath, walletPass)
	if err != nil {
		return err
	}
	contract := registryrpc.New(act, hub)

	for _, key := range ready {
		tx, _, err := contract.CreateStudioForMarket(key, proof)
		if err != nil {
			return fmt.Errorf("create studio %s: %w", settlementrpc.FormatStudioKey(key), err)
		}
		log.Printf("studio %s: creation sent in %s\n", settlementrpc.FormatStudioKey(key), tx.StringLE())
	}
	for _, key := range closable {
		tx, _, err := contract.CloseStudioEpoch(key, proof)
		if err != nil {
			return fmt.Errorf("close studio %s: %w", settlementrpc.FormatStudioKey(key), err)
		}
		log.Printf("studio %s: closing sent in %s\n", settlementrpc.FormatStudioKey(key), tx.StringLE())
	}

	return nil
}

func printState(settlement *settlementrpc.ContractReader, ready, active, closable [][]byte) {
	log.Printf("markets ready for settlement: %d\n", len(ready))
	for _, key := range ready {
		log.Printf("  %s\n", settlementrpc.FormatStudioKey(key))
	}

	log.Printf("active studios: %d\n", len(active))
	for _, key := range active {
		question, err := settlement.Question(key)
		if err != nil {
			question = fmt.Sprintf("<unavailable: %s>", err)
		}
		workers, _ := settlement.WorkerCount(key)
		verifiers, _ := settlement.VerifierCount(key)
		log.Printf("  %s: %q, %d workers, %d verifiers\n",
			settlementrpc.FormatStudioKey(key), question, workers, verifiers)
	}

	log.Printf("studios ready to close: %d\n", len(closable))
}

// triggerActor opens the trigger wallet and builds an actor signing with its
// default account.
func triggerActor(c *rpcclient.Client, path, password string) (*actor.Actor, error) {
	w, err := wallet.NewWalletFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("open trigger wallet: %w", err)
	}

	acc := w.GetAccount(w.GetChangeAddress())
	if acc == nil {
		return nil, fmt.Errorf("no default account in wallet '%s'", path)
	}

	err = acc.Decrypt(password, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("unlock trigger account: %w", err)
	}

	return actor.NewSimple(c, acc)
}
