package run

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/optibot-run/optibot/pkg/queue"
	"github.com/optibot-run/optibot/pkg/workspace"
)

// Params are the immutable inputs of one pipeline run.
type Params struct {
	// CloneURL is the remote to optimize.
	CloneURL string `validate:"required"`

	// WorkingPath is where the working copy is cloned. Exclusive to this
	// run; concurrent runs must not share it.
	WorkingPath string `validate:"required"`

	// Owner and Name identify the repository on its hosting service.
	Owner string `validate:"required"`
	Name  string `validate:"required"`

	// Token authenticates clone, reference listing, and push. Empty means
	// anonymous access (public repositories, local remotes).
	Token string

	// SigningKey is the armored OpenPGP private key for commit signing.
	SigningKey string `validate:"required"`
	// Passphrase decrypts SigningKey when it is protected.
	Passphrase string

	// Fallback, when non-nil, is handed to the fallback queue if the clone
	// fails. Opaque to the pipeline.
	Fallback *queue.Job
}

var validate = validator.New()

// Validate checks the parameter set before the pipeline starts.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid run parameters: %w", err)
	}
	return nil
}

// Credentials returns the provider used for every network operation in the
// run.
func (p Params) Credentials() workspace.CredentialsProvider {
	if p.Token == "" {
		return workspace.AnonymousCredentials{}
	}
	return workspace.TokenCredentials{Token: p.Token}
}
