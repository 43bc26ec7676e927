// Command ledgerd runs the confidential time-exchange ledger service.
//
// The ledger holds hour deposits and withdrawals as opaque encrypted handles
// that are folded into per-batch aggregates. Batch totals only ever become
// visible through the disclosure protocol: the owner closes a batch, a
// provider requests a summary, and the decryption oracle posts back a signed
// result that is checked against the commitment recorded at request time.
//
// # Oracle wiring
//
// With --oracle-url the ledger submits disclosure requests to a remote
// oracled instance and receives results on POST /oracle/result. The oracle's
// signing key is fetched from its registration endpoint and, with
// --verify-attestation, checked against a TEE attestation before it is
// trusted. Without --oracle-url an in-process oracle is used, suitable for
// demos and local development.
//
// # Usage
//
//	go run ./cmd/ledgerd --owner=<hex-address> --scheme-key=<hex>
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/api/httpserver"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/cmd/common"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/oracle"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/storage"
)

func main() {
	var (
		addr              = flag.String("addr", ":8080", "HTTP listen address")
		metricsAddr       = flag.String("metrics-addr", ":9090", "Metrics listen address (empty disables)")
		enablePprof       = flag.Bool("pprof", false, "Enable pprof debug endpoints")
		logJSON           = flag.Bool("log-json", false, "Log in JSON format")
		logDebug          = flag.Bool("log-debug", false, "Log debug messages")
		owner             = flag.String("owner", "", "Owner account address (hex Ed25519 public key)")
		identity          = flag.String("identity", "timebank-ledger", "Ledger identity bound into disclosure commitments")
		cooldownSec       = flag.Uint64("cooldown-sec", 60, "Initial per-account action cooldown in seconds")
		schemeKeyHex      = flag.String("scheme-key", "", "Demo scheme symmetric key (hex, generates if empty)")
		oracleURL         = flag.String("oracle-url", "", "Remote oracle URL (empty runs an in-process oracle)")
		verifyAttestation = flag.Bool("verify-attestation", false, "Verify the remote oracle's TEE attestation")
		useTDX            = flag.Bool("tdx", false, "Expect real TDX attestation from the oracle")
		postgresHost      = flag.String("postgres-host", "", "PostgreSQL host (empty uses in-memory storage)")
		postgresPort      = flag.Int("postgres-port", 5432, "PostgreSQL port")
		postgresUser      = flag.String("postgres-user", "timebank", "PostgreSQL user")
		postgresPassword  = flag.String("postgres-password", "", "PostgreSQL password")
		postgresDB        = flag.String("postgres-db", "timebank", "PostgreSQL database name")
	)
	flag.Parse()

	log := common.SetupLogger(*logJSON, *logDebug)

	if *owner == "" {
		fmt.Println("Error: --owner is required")
		os.Exit(1)
	}

	schemeKey, err := common.LoadOrGenerateSchemeKey(*schemeKeyHex)
	if err != nil {
		fmt.Printf("Scheme key error: %v\n", err)
		os.Exit(1)
	}
	if *schemeKeyHex == "" {
		fmt.Printf("Generated scheme key: %s\n", hex.EncodeToString(schemeKey))
	}
	scheme := fhe.NewInsecureScheme(schemeKey)

	var store ledger.Store
	if *postgresHost != "" {
		pg, err := storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     *postgresHost,
			Port:     *postgresPort,
			User:     *postgresUser,
			Password: *postgresPassword,
			Database: *postgresDB,
		})
		if err != nil {
			fmt.Printf("Storage error: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		store = storage.NewInMemoryStore()
	}

	var (
		submitter ledger.OracleSubmitter
		oracleKey crypto.PublicKey
		local     *oracle.LocalOracle
	)
	if *oracleURL != "" {
		client := oracle.NewClient(*oracleURL)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		regData, err := client.FetchRegistrationData(ctx)
		cancel()
		if err != nil {
			fmt.Printf("Oracle registration error: %v\n", err)
			os.Exit(1)
		}

		var provider = common.NewAttestationProvider(*useTDX)
		if !*verifyAttestation {
			provider = nil
		}
		oracleKey, err = oracle.VerifyRegistration(provider, regData)
		if err != nil {
			fmt.Printf("Oracle attestation error: %v\n", err)
			os.Exit(1)
		}
		submitter = client
		log.Info("Using remote oracle", "url", *oracleURL, "key", oracleKey.String())
	} else {
		signingKey, err := common.LoadOrGenerateSigningKey("")
		if err != nil {
			fmt.Printf("Oracle key error: %v\n", err)
			os.Exit(1)
		}
		local = oracle.NewLocalOracle(scheme, signingKey)
		oracleKey, _ = local.PublicKey()
		submitter = local
		log.Info("Using in-process oracle", "key", oracleKey.String())
	}

	l, err := ledger.New(ledger.Config{
		Owner:     ledger.Address(*owner),
		Scheme:    scheme,
		Oracle:    submitter,
		OracleKey: oracleKey,
		Identity:  []byte(*identity),
		Cooldown:  time.Duration(*cooldownSec) * time.Second,
		Store:     store,
		Log:       log,
	})
	if err != nil {
		fmt.Printf("Create ledger error: %v\n", err)
		os.Exit(1)
	}

	if local != nil {
		local.SetResultHandler(func(requestID uint64, cleartext []byte, proof crypto.Signature) error {
			_, err := l.OnDisclosureResult(requestID, cleartext, proof)
			return err
		}, true)
	}

	handler := httpserver.NewLedgerHandler(l, log)
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		EnablePprof:              *enablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, handler)
	if err != nil {
		fmt.Printf("Create server error: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting ledger service",
		"addr", *addr, "owner", *owner, "batch", l.CurrentBatchID())
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down ledger service")
	srv.Shutdown()
}
