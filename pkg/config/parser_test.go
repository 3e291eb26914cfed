package config

import (
	"os"
	"strings"
	"testing"
)

func TestConfigParser(t *testing.T) {
	var pathToConfigFile = ""
	wd, _ := os.Getwd()

	if strings.HasSuffix(wd, "pkg/config") {
		pathToConfigFile = "../../"
	}
	pathToConfigFile += "cmd/config.json"

	config := ReadConfigurationFile(pathToConfigFile)

	if config.Seed != 42 ||
		config.OutputPathPrefix != "data/out/benchmark" ||
		config.Preset != "default" ||
		len(config.Codecs) != 5 ||
		config.Codecs[0] != "json" ||
		config.PayloadTier != "medium" ||
		config.PayloadCount != 100 ||
		config.MeasurementMode != "serialize" ||
		config.MinSamples != 0 ||
		config.WarmupCVThreshold != 0 {

		t.Error("Unexpected configuration read.")
	}
}
