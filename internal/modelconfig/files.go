package modelconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
)

// ServiceAccountFile is the structured config file of the file source.
type ServiceAccountFile struct {
	CatalogID           string `json:"CatalogID" yaml:"CatalogID" toml:"CatalogID"`
	ServiceAccountID    string `json:"ServiceAccountID" yaml:"ServiceAccountID" toml:"ServiceAccountID"`
	ServiceAccountKeyID string `json:"ServiceAccountKeyID" yaml:"ServiceAccountKeyID" toml:"ServiceAccountKeyID"`
	IAMURL              string `json:"IAMURL" yaml:"IAMURL" toml:"IAMURL"`
}

// KeyFile is the authorized-key JSON downloaded for a service account.
type KeyFile struct {
	ID               string `json:"id"`
	ServiceAccountID string `json:"service_account_id"`
	PrivateKey       string `json:"private_key"`
}

// LoadServiceAccountFile reads the config file, picking the decoder by extension:
// .yaml/.yml, .json or .toml.
func LoadServiceAccountFile(path string) (ServiceAccountFile, error) {
	var f ServiceAccountFile
	b, err := os.ReadFile(path)
	if err != nil {
		return f, apierr.WrapConfig("read config file", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return f, apierr.Configf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return f, apierr.WrapConfig(fmt.Sprintf("decode config file %s", path), err)
	}

	switch {
	case f.CatalogID == "":
		return f, apierr.Configf("config file %s: CatalogID is required", path)
	case f.ServiceAccountID == "":
		return f, apierr.Configf("config file %s: ServiceAccountID is required", path)
	case f.ServiceAccountKeyID == "":
		return f, apierr.Configf("config file %s: ServiceAccountKeyID is required", path)
	}
	return f, nil
}

func LoadKeyFile(path string) (KeyFile, error) {
	var k KeyFile
	b, err := os.ReadFile(path)
	if err != nil {
		return k, apierr.WrapConfig("read key file", err)
	}
	if err := json.Unmarshal(b, &k); err != nil {
		return k, apierr.WrapConfig(fmt.Sprintf("decode key file %s", path), err)
	}
	if k.PrivateKey == "" {
		return k, apierr.Configf("key file %s: private_key is required", path)
	}
	return k, nil
}
