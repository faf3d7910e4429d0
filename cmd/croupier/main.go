package main

import (
	"fmt"
	"net"
	"os"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"cardtable/config"
	"cardtable/croupier"
	"cardtable/logging"
	"cardtable/security"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.json>\n", os.Args[0])
		os.Exit(1)
	}
	cfg, err := config.LoadServer(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.Logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("C", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("roupier", pterm.FgDarkGray.ToStyle()),
	).Render()

	trust, err := security.LoadTrustStore(cfg.TrustedDir, cfg.RevocationList)
	if err != nil {
		pterm.Error.Printfln("Could not load trust anchors: %v", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		pterm.Error.Printfln("Could not listen on %s: %v", cfg.Listen, err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Listening on %s", ln.Addr())
	pterm.Info.Printfln("Trust anchors from %s", cfg.TrustedDir)

	srv := croupier.NewServer(trust)
	if err := srv.Serve(ln); err != nil {
		pterm.Error.Printfln("Server stopped: %v", err)
		os.Exit(1)
	}
}
