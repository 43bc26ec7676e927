// Command oracled runs a standalone decryption oracle service.
//
// The oracle holds the decryption capability the ledger never has. It
// accepts batches of encrypted handles on POST /oracle/decrypt, decrypts
// them, signs the cleartext together with the request id, and posts the
// result to the ledger's callback endpoint.
//
// # Registration
//
// The oracle exposes GET /oracle/registration-data returning its signing
// key, optionally bound to a TEE attestation (--tdx). A ledger operator
// fetches this data and verifies the attestation before trusting the key
// as the disclosure proof verifier.
//
// # Usage
//
//	go run ./cmd/oracled --scheme-key=<hex> --callback-url=http://localhost:8080/oracle/result
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/api/httpserver"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/cmd/common"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/oracle"
)

func main() {
	var (
		addr          = flag.String("addr", ":8081", "HTTP listen address")
		metricsAddr   = flag.String("metrics-addr", "", "Metrics listen address (empty disables)")
		logJSON       = flag.Bool("log-json", false, "Log in JSON format")
		logDebug      = flag.Bool("log-debug", false, "Log debug messages")
		callbackURL   = flag.String("callback-url", "", "Ledger callback URL for disclosure results")
		schemeKeyHex  = flag.String("scheme-key", "", "Demo scheme symmetric key (hex)")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 signing key (hex, generates if empty)")
		useTDX        = flag.Bool("tdx", false, "Use real TDX attestation")
	)
	flag.Parse()

	log := common.SetupLogger(*logJSON, *logDebug)

	if *callbackURL == "" {
		fmt.Println("Error: --callback-url is required")
		os.Exit(1)
	}
	if *schemeKeyHex == "" {
		fmt.Println("Error: --scheme-key is required (must match the ledger's key)")
		os.Exit(1)
	}

	schemeKey, err := common.LoadOrGenerateSchemeKey(*schemeKeyHex)
	if err != nil {
		fmt.Printf("Scheme key error: %v\n", err)
		os.Exit(1)
	}

	signingKey, err := common.LoadOrGenerateSigningKey(*signingKeyHex)
	if err != nil {
		fmt.Printf("Signing key error: %v\n", err)
		os.Exit(1)
	}

	local := oracle.NewLocalOracle(fhe.NewInsecureScheme(schemeKey), signingKey)
	pubKey, _ := local.PublicKey()
	fmt.Printf("Oracle public key: %s\n", pubKey.String())

	provider := common.NewAttestationProvider(*useTDX)
	service := oracle.NewService(local, provider, *callbackURL, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, service)
	if err != nil {
		fmt.Printf("Create server error: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting oracle service", "addr", *addr, "callback", *callbackURL)
	log.Info("Registration data available at GET /oracle/registration-data")
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down oracle service")
	srv.Shutdown()
}
