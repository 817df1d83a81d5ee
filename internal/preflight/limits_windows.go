//go:build windows

package preflight

func checkFileDescriptors(workers int) Check {
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: true,
		Message: "not applicable on windows",
	}
}

func checkProcessLimit(workers int) Check {
	return Check{
		Name:    "process_limit",
		Passed:  true,
		Warning: true,
		Message: "not applicable on windows",
	}
}
