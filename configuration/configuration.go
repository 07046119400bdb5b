package configuration

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/bookkeeping"
	"github.com/bartossh/Ledgerium/client"
	"github.com/bartossh/Ledgerium/fileoperations"
	"github.com/bartossh/Ledgerium/server"
	"github.com/bartossh/Ledgerium/telemetry"
	"github.com/bartossh/Ledgerium/validator"
)

// EnvPath is the environment variable holding the configuration file path.
const EnvPath = "LEDGERIUM_CONFIG"

var ErrNoPath = errors.New("please specify configuration file path with -c <path to file> or " + EnvPath + " environment variable")

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	Chain        blockchain.Config     `yaml:"chain"`
	Bookkeeper   bookkeeping.Config    `yaml:"bookkeeper"`
	Server       server.Config         `yaml:"server"`
	Telemetry    telemetry.Config      `yaml:"telemetry"`
	FileOperator fileoperations.Config `yaml:"file_operator"`
	Client       client.Config         `yaml:"client"`
	Validator    validator.Config      `yaml:"validator"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
// Missing chain section falls back to the default chain configuration.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	main := Configuration{Chain: blockchain.DefaultConfig()}
	err = yaml.Unmarshal(buf, &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	return main, err
}

// ResolvePath returns the path when set or the EnvPath environment variable otherwise.
// The environment is populated from the env files first, .env when none is given.
// Variables already present in the environment are not overwritten.
func ResolvePath(path string, envFiles ...string) (string, error) {
	if path != "" {
		return path, nil
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	path = os.Getenv(EnvPath)
	if path == "" {
		return "", ErrNoPath
	}
	return path, nil
}
