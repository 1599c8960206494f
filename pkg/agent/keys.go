package agent

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/config"
	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
)

// RotateKeys generates a fresh keypair with the configured algorithm,
// re-signs the agent document as a new version, and records the new key in
// the trust store. The previous encrypted key file is archived with a
// .bak.<version> suffix rather than deleted.
func (a *Agent) RotateKeys(password string) error {
	if a.doc == nil {
		return jacserr.AgentNotLoaded()
	}
	if password == "" {
		password = a.cfg.PrivateKeyPassword
	}

	signer, err := a.registry.Get(a.cfg.KeyAlgorithm)
	if err != nil {
		return err
	}
	priv, pub, err := signer.Generate()
	if err != nil {
		return err
	}

	oldVersion := a.doc.Version()
	if !a.ephemeral {
		encrypted, err := crypt.EncryptPrivateKey(password, priv)
		if err != nil {
			return err
		}
		privPath := filepath.Join(a.cfg.KeyDirectory, a.cfg.PrivateKeyFilename)
		if _, statErr := os.Stat(privPath); statErr == nil {
			if err := os.Rename(privPath, privPath+".bak."+oldVersion); err != nil {
				return jacserr.FileReadFailed(privPath, err)
			}
		}
		if err := paths.WriteAtomic(privPath, encrypted); err != nil {
			return err
		}
		if err := paths.WriteAtomic(filepath.Join(a.cfg.KeyDirectory, a.cfg.PublicKeyFilename), pub); err != nil {
			return err
		}
	}

	oldKey := a.engine.Identity.PrivateKey
	a.engine.Identity.PrivateKey = crypt.NewPrivateKey(priv)
	a.engine.Identity.PublicKey = pub
	a.engine.Identity.PublicKeyHash = crypt.PublicKeyHash(pub)
	a.engine.Identity.Algorithm = a.cfg.KeyAlgorithm
	if oldKey != nil {
		oldKey.Destroy()
	}

	next, err := a.doc.Clone()
	if err != nil {
		return err
	}
	next["jacsPublicKey"] = base64.StdEncoding.EncodeToString(pub)
	next[document.FieldPreviousVersion] = oldVersion
	newVersion := uuid.NewString()
	next[document.FieldVersion] = newVersion
	next[document.FieldVersionDate] = time.Now().UTC().Format(time.RFC3339)
	a.engine.Identity.AgentVersion = newVersion

	if err := a.engine.SignField(next, document.SignatureField); err != nil {
		return err
	}
	a.doc = next

	if err := a.recordOwnTrust(); err != nil {
		return err
	}
	if !a.ephemeral {
		if err := a.persistAgentDocument(); err != nil {
			return err
		}
	}
	a.cfg.AgentIDAndVersion = a.doc.Key()
	jenv.Set(config.EnvAgentIDAndVersion, a.cfg.AgentIDAndVersion)
	a.logger.Info("keys rotated", "agentID", a.ID(), "version", newVersion)
	return nil
}
