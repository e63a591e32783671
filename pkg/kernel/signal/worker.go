package signal

import (
	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/kernel/signal/sigframe"
)

// workerMsgKind tags the worker's message-channel sum type (spec.md §9
// "Variant messages ... use a sum type, not an untagged union").
type workerMsgKind int

const (
	msgShutdown workerMsgKind = iota
	msgKill
	msgDeliver
	msgAddChild
)

type workerMsg struct {
	kind  workerMsgKind
	info  SigInfo
	child *GuestChild
}

// workerLoop is the Signal Controller's single auxiliary thread: it
// multiplexes the message channel and the Child-Process Watcher's
// completion stream, exactly as spec.md §4.1 describes (a real named
// pipe crossing a process boundary for the latter; OQ-1 in DESIGN.md
// records why the former is a Go channel instead of a literal pipe).
func (c *Controller) workerLoop() {
	defer close(c.done)
	for {
		select {
		case msg := <-c.msgCh:
			if !c.handleMessage(msg) {
				return
			}
		case ev, ok := <-c.watcher.completions:
			if ok {
				c.handleChildEvent(ev)
			}
		}
	}
}

func (c *Controller) handleMessage(msg workerMsg) (cont bool) {
	switch msg.kind {
	case msgShutdown:
		return false
	case msgKill:
		c.deliver(msg.info)
	case msgDeliver:
		c.redeliverPending()
	case msgAddChild:
		c.watcher.register(msg.child)
	}
	return true
}

// deliver runs the delivery algorithm for a freshly arrived signal
// (spec.md §4.1 "Delivery algorithm").
func (c *Controller) deliver(info SigInfo) {
	signo := int(info.Signo)
	if signo <= 0 || signo >= linux.NSIG {
		return
	}

	c.mu.Lock()
	if c.pending.Has(signo) {
		// Step 1: already pending, coalesce by dropping this arrival.
		c.mu.Unlock()
		return
	}
	if c.mask.Has(signo) || !c.canAcceptSignal {
		// Step 2: masked or a handler is already in flight; queue it.
		c.pending.Add(signo)
		c.info[signo] = info
		c.mu.Unlock()
		return
	}
	disp := c.dispositions[signo]
	c.mu.Unlock()

	c.deliverNow(signo, info, disp)
}

// redeliverPending re-scans the pending set under the current mask,
// delivering the lowest-numbered eligible signal (spec.md §3 "Deliver
// message ... re-check pending under current mask"; §8 "Rearm
// liveness").
func (c *Controller) redeliverPending() {
	for {
		c.mu.Lock()
		if !c.canAcceptSignal {
			c.mu.Unlock()
			return
		}
		eligible := c.pending &^ c.mask
		signo, ok := eligible.Lowest()
		if !ok {
			c.mu.Unlock()
			return
		}
		c.pending.Del(signo)
		info := c.info[signo]
		disp := c.dispositions[signo]
		c.mu.Unlock()

		c.deliverNow(signo, info, disp)
	}
}

// deliverNow performs step 3 of the delivery algorithm: act on
// disposition immediately. Called with the mutex NOT held.
func (c *Controller) deliverNow(signo int, info SigInfo, disp Disposition) {
	switch disp.Kind {
	case linux.HandlerIgnore:
		return
	case linux.HandlerDefault:
		if linux.TerminatingByDefault(signo) {
			c.log.WithField("signal", signo).Info("signal: terminating process on default disposition")
			c.mu.Lock()
			t := c.terminator
			c.mu.Unlock()
			if t != nil {
				t.Terminate(signo)
			}
		}
		return
	case linux.HandlerUser:
		c.deliverToHandler(signo, info, disp)
	}
}

// deliverToHandler is the suspend/context-rewrite/resume sequence
// (spec.md §4.1 step 3 "User handler").
func (c *Controller) deliverToHandler(signo int, info SigInfo, disp Disposition) {
	c.mu.Lock()
	c.canAcceptSignal = false
	c.current = info
	c.mu.Unlock()

	if err := c.thread.Suspend(); err != nil {
		c.log.WithError(err).Error("signal: suspend guest thread failed")
		return
	}
	regs, err := c.thread.GetContext()
	if err != nil {
		c.log.WithError(err).Error("signal: read guest context failed")
		c.thread.Resume()
		return
	}

	if err := c.translator.DeliverSignal(&regs); err != nil {
		c.log.WithError(err).Error("signal: deliver_signal safe-point hook failed")
		c.thread.Resume()
		return
	}

	c.mu.Lock()
	mask := c.mask
	restorer := disp.Restorer
	handler := disp.Handler
	handlerMask := disp.Mask
	c.mu.Unlock()

	var fpuData []byte
	if c.fpu != nil {
		fpuData, _ = c.fpu.Save()
	}

	built, err := sigframe.Build(c.memory, regs, info, mask, uint32(restorer), fpuData)
	if err != nil {
		c.log.WithError(err).Error("signal: build signal frame failed")
		c.thread.Resume()
		return
	}

	c.mu.Lock()
	c.mask.Add(signo)
	c.mask = c.mask.Union(handlerMask)
	c.canAcceptSignal = true
	c.mu.Unlock()
	c.sigevent.Reset()

	regs.Esp = built.Base
	regs.Eip = uint32(handler)
	regs.Eax = uint32(signo)
	regs.Edx = built.InfoAddr
	regs.Ecx = built.UCAddr

	if err := c.thread.SetContext(regs); err != nil {
		c.log.WithError(err).Error("signal: write guest context failed")
	}
	if err := c.thread.Resume(); err != nil {
		c.log.WithError(err).Error("signal: resume guest thread failed")
	}
}

// handleChildEvent translates a Child-Process Watcher completion into a
// synthetic child-termination signal and wait-semaphore increment
// (spec.md §4.2).
func (c *Controller) handleChildEvent(ev childCompletion) {
	ev.child.mu.Lock()
	ev.child.terminated = true
	ev.child.mu.Unlock()

	select {
	case c.waitSem <- struct{}{}:
	default:
	}

	c.deliver(SigInfo{Signo: linux.SIGCHLD})
}
