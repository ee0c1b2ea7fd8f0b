package config

import (
	"errors"
	"fmt"
)

// Validate checks that a loaded Config is usable. Field-level problems are
// collected and joined so an operator sees every problem at once rather
// than fixing them one restart at a time.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.System.ScriptsRoot == "" {
		errs = append(errs, NewValidationError("system.scripts_root", errors.New("must not be empty")))
	}
	if cfg.System.RunLogDir == "" {
		errs = append(errs, NewValidationError("system.run_log_dir", errors.New("must not be empty")))
	}
	if cfg.System.DBPath == "" {
		errs = append(errs, NewValidationError("system.db_path", errors.New("must not be empty")))
	}
	if cfg.System.HTTPPort == "" {
		errs = append(errs, NewValidationError("system.http_port", errors.New("must not be empty")))
	}
	if cfg.System.SchedulerTick <= 0 {
		errs = append(errs, NewValidationError("system.scheduler_tick", errors.New("must be positive")))
	}
	if cfg.System.HousekeepingTick <= 0 {
		errs = append(errs, NewValidationError("system.housekeeping_tick", errors.New("must be positive")))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(errs...))
	}
	return nil
}
