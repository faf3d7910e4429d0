package config

import (
	"encoding/json"
	"os"

	"cardtable/logging"
)

// Server holds the croupier process configuration.
type Server struct {
	Listen         string         `json:"listen"`
	TrustedDir     string         `json:"trusted_dir"`
	RevocationList string         `json:"revocation_list"`
	Logger         logging.Config `json:"logger"`
}

// Client holds the player process configuration.
type Client struct {
	Server     string   `json:"server"`
	Name       string   `json:"name"`
	CertFile   string   `json:"cert_file"`
	KeyFile    string   `json:"key_file"`
	ChainFiles []string `json:"chain_files"`
	Auto       bool     `json:"auto"`

	// Trust anchors for authenticating the other seats. Optional: when
	// unset, opponents' chains are not validated locally.
	TrustedDir     string `json:"trusted_dir"`
	RevocationList string `json:"revocation_list"`

	// Shuffle protocol probabilities. Zero means "use default".
	PickChance   float64        `json:"pick_chance"`
	SwapChance   float64        `json:"swap_chance"`
	CommitChance float64        `json:"commit_chance"`
	Logger       logging.Config `json:"logger"`
}

// LoadServer reads a server configuration file.
func LoadServer(path string) (*Server, error) {
	cfg := &Server{
		Listen:     "localhost:50000",
		TrustedDir: "trusted_certificates",
	}
	if err := load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient reads a client configuration file.
func LoadClient(path string) (*Client, error) {
	cfg := &Client{
		Server: "localhost:50000",
	}
	if err := load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(v)
}
