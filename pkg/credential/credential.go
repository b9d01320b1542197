// Package credential obtains the ambient Azure identity shared by the blob
// and cosmos clients.
package credential

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/ethpandaops/indexseed/pkg/config"
)

// New returns the credential selected by cfg.Type. The Azure CLI credential
// uses the operator's `az login` session; default walks the SDK's standard
// chain (environment, workload identity, managed identity, CLI).
func New(cfg *config.CredentialConfig) (azcore.TokenCredential, error) {
	switch cfg.Type {
	case config.CredentialAzureCLI, "":
		cred, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return nil, fmt.Errorf("creating azure cli credential: %w", err)
		}

		return cred, nil
	case config.CredentialDefault:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("creating default azure credential: %w", err)
		}

		return cred, nil
	default:
		return nil, fmt.Errorf("unsupported credential type %q", cfg.Type)
	}
}
