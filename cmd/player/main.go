package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"cardtable/client"
	"cardtable/config"
	"cardtable/logging"
	"cardtable/security"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.json>\n", os.Args[0])
		os.Exit(1)
	}
	cfg, err := config.LoadClient(os.Args[1])
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
		putils.LettersFromStringWithStyle("ard ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("T", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("able", pterm.FgDarkGray.ToStyle()),
	).Render()

	card, err := loadIdentity(cfg)
	if err != nil {
		pterm.Error.Printfln("Could not load identity: %v", err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Playing as %s", card.Name())

	var trust *security.TrustStore
	if cfg.TrustedDir != "" {
		trust, err = security.LoadTrustStore(cfg.TrustedDir, cfg.RevocationList)
		if err != nil {
			pterm.Error.Printfln("Could not load trust anchors: %v", err)
			os.Exit(1)
		}
	}

	c, err := client.Dial(cfg.Server, card)
	if err != nil {
		pterm.Error.Printfln("Could not reach the croupier: %v", err)
		os.Exit(1)
	}
	defer c.Close()
	if err := c.Register(); err != nil {
		pterm.Error.Printfln("Registration failed: %v", err)
		os.Exit(1)
	}
	pterm.Success.Printfln("Connected to %s", cfg.Server)

	runner := client.NewRunner(c, client.Options{
		PickChance:   cfg.PickChance,
		SwapChance:   cfg.SwapChance,
		CommitChance: cfg.CommitChance,
		Trust:        trust,
	})
	if err := seat(c, runner); err != nil {
		pterm.Error.Printfln("Could not take a seat: %v", err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Seated at table %q as seat %d", runner.Table.Title, runner.Seat())

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the table to fill ...")
	if err := runner.WaitFull(); err != nil {
		spinner.Fail()
		os.Exit(1)
	}
	spinner.Success()

	spinner, _ = pterm.DefaultSpinner.Start("Authenticating the other players ...")
	if err := runner.AuthenticatePeers(); err != nil {
		spinner.Fail()
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
	spinner.Success()
	for _, p := range runner.Players() {
		pterm.Info.Printfln("Seat %d: %s", p.Num, p.Name)
	}

	if err := runner.Confirm(); err != nil {
		pterm.Error.Printfln("Confirmation failed: %v", err)
		os.Exit(1)
	}

	spinner, _ = pterm.DefaultSpinner.Start("Shuffling and dealing the cards ...")
	steps := []func() error{runner.RunShuffle, runner.Validate, runner.DecryptHand}
	for _, step := range steps {
		if err := step(); err != nil {
			spinner.Fail()
			pterm.Error.Printfln("%v", err)
			os.Exit(1)
		}
	}
	spinner.Success()

	printHand(runner.Hand)

	var choose client.Chooser
	if !cfg.Auto {
		choose = func(remaining []string) (string, error) {
			return pterm.DefaultInteractiveSelect.
				WithDefaultText("Pick a card to play").
				WithOptions(remaining).
				Show()
		}
	}
	winners, err := runner.PlayGame(choose)
	if err != nil {
		pterm.Error.Printfln("Game failed: %v", err)
		os.Exit(1)
	}
	printOutcome(winners, runner.Seat())
}

// loadIdentity reads the configured card files, or mints a throwaway
// identity under a fresh local authority when no certificate is set.
func loadIdentity(cfg *config.Client) (security.IdentityProvider, error) {
	if cfg.CertFile != "" {
		return security.LoadSoftCard(cfg.CertFile, cfg.KeyFile, cfg.ChainFiles)
	}
	name := cfg.Name
	if name == "" {
		name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your username").Show()
	}
	authority, err := security.NewAuthority(name + " Root CA")
	if err != nil {
		return nil, err
	}
	anchor := name + "_authority.der"
	if err := os.WriteFile(anchor, authority.Certificate(), 0o644); err != nil {
		return nil, err
	}
	pterm.Info.Printfln("Throwaway identity: add %s to the croupier's trusted directory", anchor)
	return authority.Issue(name)
}

// seat either joins a listed table or hosts a new one.
func seat(c *client.Client, runner *client.Runner) error {
	tables, err := c.TableList()
	if err != nil {
		return err
	}
	const hostOption = "Host a new table"
	options := []string{hostOption}
	byOption := map[string]string{}
	for _, t := range tables {
		option := fmt.Sprintf("%s (%d/%d)", t.Title, t.PlayerCount, t.MaxPlayers)
		options = append(options, option)
		byOption[option] = t.ID
	}
	picked, err := pterm.DefaultInteractiveSelect.
		WithDefaultText("Choose a table").
		WithOptions(options).
		Show()
	if err != nil {
		return err
	}
	if picked == hostOption {
		title, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Table title").
			WithDefaultValue("Hearts").
			Show()
		return runner.Host(title)
	}
	return runner.Join(byOption[picked])
}

func printHand(hand []string) {
	box := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	line := ""
	for i, card := range hand {
		if i > 0 {
			line += " - "
		}
		line += card
	}
	pterm.Println(box.WithTitle(pterm.LightGreen("|YOUR HAND|")).WithTitleTopCenter().Sprint(line))
}

func printOutcome(winners []int, seat int) {
	won := false
	for _, w := range winners {
		if w == seat {
			won = true
		}
	}
	if won {
		pterm.Success.Printfln("You won! Winning seats: %v", winners)
	} else {
		pterm.Info.Printfln("Game over. Winning seats: %v", winners)
	}
}
