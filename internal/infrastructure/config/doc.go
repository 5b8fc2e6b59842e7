// Package config handles loading and validating fog access core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FOGCORE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (pepper, backend password, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The credential pepper must be set before the first device registers;
//     rotating it invalidates every issued API key
//
// Usage:
//
//	cfg, err := config.Load("configs/fogcore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.ID)
package config
