//go:build windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// signalTerminate tries an interrupt; Windows does not deliver it to most
// processes, in which case the grace period elapses and Kill follows. An
// already finished process is reported so the caller can classify it.
func signalTerminate(p *os.Process) error {
	if err := p.Signal(os.Interrupt); errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func signalKill(p *os.Process) error {
	return p.Kill()
}

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
