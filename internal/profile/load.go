package profile

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const companyKey = "company"

// Load reads a profile from a yaml or json file. The profile may be placed at
// the top level or under a "company" key.
func Load(path string) (*Company, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("profile file is not configured")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}

	var company Company
	var err error
	if v.IsSet(companyKey) {
		err = v.UnmarshalKey(companyKey, &company)
	} else {
		err = v.Unmarshal(&company)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding profile %q: %w", path, err)
	}

	return &company, nil
}
