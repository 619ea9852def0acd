package main

import "code.hybscloud.com/corevm"

// startRuntime builds a corevm.Runtime from --config, or corevm's
// defaults if no config path was given.
func startRuntime() (*corevm.Runtime, error) {
	if configPath == "" {
		return corevm.Startup()
	}
	fc, err := corevm.LoadFileConfig(configPath)
	if err != nil {
		return nil, err
	}
	return corevm.Startup(fc.Options()...)
}
