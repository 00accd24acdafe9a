//go:build linux

package main

import (
	libseccomp "github.com/seccomp/libseccomp-golang"
)

// deniedSyscalls is the deny list applied to the run phase. The default
// action stays allow: compilers and interpreters need a broad surface, and
// the container already drops capabilities and the network; this list cuts
// off the escape hatches that remain.
var deniedSyscalls = []string{
	"socket",
	"socketpair",
	"connect",
	"accept",
	"accept4",
	"bind",
	"listen",
	"ptrace",
	"process_vm_readv",
	"process_vm_writev",
	"mount",
	"umount2",
	"pivot_root",
	"chroot",
	"reboot",
	"kexec_load",
	"init_module",
	"finit_module",
	"delete_module",
	"setuid",
	"setgid",
	"setreuid",
	"setregid",
}

// applySeccomp installs the deny-list filter. The filter survives the
// following exec, so the user program inherits it.
func applySeccomp() error {
	filter, err := libseccomp.NewFilter(libseccomp.ActAllow)
	if err != nil {
		return err
	}
	defer filter.Release()

	for _, name := range deniedSyscalls {
		syscallID, err := libseccomp.GetSyscallFromName(name)
		if err != nil {
			// Not every kernel knows every name.
			continue
		}
		if err := filter.AddRule(syscallID, libseccomp.ActErrno.SetReturnCode(int16(unixEPERM))); err != nil {
			return err
		}
	}
	if err := filter.SetNoNewPrivsBit(true); err != nil {
		return err
	}
	return filter.Load()
}

const unixEPERM = 1
