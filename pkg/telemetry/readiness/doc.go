// Package readiness implements the liveness, readiness and version probes
// served by the status API.
//
// Readiness checks are registered by name and run concurrently, each under
// its own timeout:
//
//	checker := readiness.New(2 * time.Second)
//	checker.RegisterCheck("providers", func(ctx context.Context) error {
//	    if manager.HealthyProviders() == 0 {
//	        return errors.New("no healthy providers")
//	    }
//	    return nil
//	})
package readiness
