// SPDX-License-Identifier: MPL-2.0

package deployconfig

// PatchRuntime adjusts a resolved runtime config for development, in place.
// Compatibility flags are de-duplicated keeping the first occurrence and
// script_name is cleared on every Durable Object binding so the classes are
// served by the worker under development. When the worker module exists the
// assets binding defaults to binding and run_worker_first defaults to true.
// Fields the user set are left as they are.
func PatchRuntime(cfg *Config, binding string, workerExists bool) {
	if cfg == nil {
		return
	}

	cfg.CompatibilityFlags = dedupe(cfg.CompatibilityFlags)

	if cfg.DurableObjects != nil {
		for i := range cfg.DurableObjects.Bindings {
			cfg.DurableObjects.Bindings[i].ScriptName = ""
		}
	}

	if !workerExists {
		return
	}
	if cfg.Assets == nil {
		cfg.Assets = &Assets{}
	}
	if cfg.Assets.Binding == "" {
		cfg.Assets.Binding = binding
	}
	if cfg.Assets.RunWorkerFirst == nil {
		cfg.Assets.RunWorkerFirst = true
	}
}

// dedupe compacts flags into its own backing array.
func dedupe(flags []string) []string {
	if len(flags) < 2 {
		return flags
	}
	seen := make(map[string]struct{}, len(flags))
	out := flags[:0]
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	clear(flags[len(out):])
	return out
}
