package buildversion

import "runtime/debug"

// GetVersion resolves the version of a module from the build info of
// the running binary.  Returns an empty string when the module is not
// part of the build (for instance during tests).
func GetVersion(modulePath string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	if info.Main.Path == modulePath {
		return info.Main.Version
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return dep.Version
		}
	}

	return ""
}
