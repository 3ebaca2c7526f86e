package builtin

import "github.com/custodialabs/custodia/internal/forensic"

// RegisterAll adds the built-in modules to the registry.
func RegisterAll(r *forensic.Registry) error {
	for _, m := range []forensic.Module{
		Triage{},
		Verification{},
	} {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}
