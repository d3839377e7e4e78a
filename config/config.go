package config

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Settings defines the structure for configuration options
type Settings struct {
	Process   string   `yaml:"process"`
	DumpDir   string   `yaml:"dumpDir"`
	OutputDir string   `yaml:"outputDir"`
	Formats   []string `yaml:"formats"`
	Modules   []string `yaml:"modules,omitempty"`
	LogFile   string   `yaml:"logFile"`
	Debug     bool     `yaml:"debug"`
}

// defaultSettings provides default values for settings
var defaultSettings = Settings{
	Process:   "cs2.exe",
	DumpDir:   "", // empty reads the live process
	OutputDir: "output",
	Formats:   []string{"json", "hpp"},
	Modules:   nil, // empty resolves every known module
	LogFile:   "sigmap.log",
	Debug:     false,
}

// Defaults returns a copy of the built-in settings.
func Defaults() Settings {
	s := defaultSettings
	s.Formats = append([]string(nil), defaultSettings.Formats...)
	return s
}

// LoadConfig loads settings from a YAML file, creating the file with defaults if it doesn't exist.
// Keys missing from the file keep their default value.
func LoadConfig(filePath string) (*Settings, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		err := createDefaultConfig(filePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", filePath).Info("created default config file")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()

	config := Defaults()
	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "decode %s", filePath)
	}

	return &config, nil
}

// createDefaultConfig creates a config file with default settings
func createDefaultConfig(filePath string) error {
	data, err := yaml.Marshal(&defaultSettings)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.WriteFile(filePath, data, 0644))
}
