// Package scheduler is the core of gtestisolate: it owns the work queue,
// the bounded worker slots, the poll set, the deadline checks, the signal
// dispatch, and the per-iteration repeat loop (§4.2).
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dkoosis/gtestisolate/internal/catalog"
	"github.com/dkoosis/gtestisolate/internal/childproc"
	"github.com/dkoosis/gtestisolate/internal/clock"
	"github.com/dkoosis/gtestisolate/internal/config"
	"github.com/dkoosis/gtestisolate/internal/diagnostic"
	"github.com/dkoosis/gtestisolate/internal/format"
	"github.com/dkoosis/gtestisolate/internal/record"
	"github.com/dkoosis/gtestisolate/internal/reportcolor"
	"github.com/dkoosis/gtestisolate/internal/xmlreport"
)

// tickInterval is the fixed sleep between loop ticks (§4.2: "a few
// milliseconds" to avoid busy-waiting).
const tickInterval = 5 * time.Millisecond

// readWedgeCeiling bounds how long the scheduler keeps draining a reaped
// child's output before giving up on it (§4.4).
const readWedgeCeiling = 2 * time.Second

// Scheduler runs one or more iterations of the discovered catalog.
type Scheduler struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	clock   clock.Clock
	color   reportcolor.Policy
	diag    *diagnostic.Writer
	out     *os.File
}

// New builds a Scheduler for a discovered catalog.
func New(cfg *config.Config, cat *catalog.Catalog, out *os.File, diag *diagnostic.Writer) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		catalog: cat,
		clock:   clock.System{},
		color:   reportcolor.Resolve(cfg.Color, out),
		diag:    diag,
		out:     out,
	}
}

// pendingReap tracks a reaped child still waiting for its output pipe to
// close, bounded by readWedgeCeiling (§4.4's 2-second safety net).
type pendingReap struct {
	msg        childproc.ReapMsg
	deadlineNS int64
}

// iteration holds all mutable state for one run through the catalog. A
// fresh iteration is created for every --gtest_repeat pass so counters and
// slot bookkeeping never leak between iterations.
type iteration struct {
	s *Scheduler

	cursor    int
	freeSlots []int

	slotToRecord map[int]*record.Record
	pidToSlot    map[int]int
	readEOF      map[int]bool
	pending      map[int]pendingReap

	finished map[int]*record.Record

	counters format.Counters

	outputs chan childproc.OutputMsg
	reaped  chan childproc.ReapMsg
	children map[int]*childproc.Child

	formatter *format.Formatter

	sigCh  chan os.Signal
	sigInt bool
}

// Result is what one iteration produced, ready for footer/XML rendering.
// SIGINT never reaches this type: Run exits the process directly before a
// Result is built for the interrupted iteration (§7, §8).
type Result struct {
	Records     []*record.Record
	Counters    format.Counters
	WallClockMS int64
	StartTime   time.Time
	ExitCode    int
}

// Run executes cfg.NumIterations passes over the catalog (negative means
// indefinitely), returning the last iteration's result and overall exit
// code. It prints the job banner, live stream, and footer for each pass,
// and writes the XML report (if configured) after each pass, matching the
// original's per-iteration independence (§4.2 num_iterations).
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	jobInfo := fmt.Sprintf("Running %s from %s (%s).",
		format.Plural(s.catalog.TotalTests, " test", false),
		format.Plural(s.catalog.TotalSuites, " test case", false),
		format.Plural(s.cfg.JobCount, " job", false))

	var last *Result
	exitCode := 0

	for i := 0; s.cfg.NumIterations < 0 || i < s.cfg.NumIterations; i++ {
		if i > 0 {
			fmt.Fprintf(s.out, "\nRepeating all tests (iteration %d) . . .\n\n", i+1)
		}
		fmt.Fprintf(s.out, "%s %s\n", s.color.Green("[==========]"), jobInfo)

		it := s.newIteration()
		startTime := time.Now()
		startNS := s.clock.NowNS()

		it.runLoop(ctx)

		if it.sigInt {
			// SIGINT aborts the run immediately: no footer, no XML report,
			// no further iterations (§7, §8).
			os.Exit(1)
		}

		wallNS := s.clock.NowNS() - startNS
		wallMS := clock.Millis(wallNS)

		result := &Result{
			Records:     orderedRecords(it.finished, s.catalog.TotalTests),
			Counters:    it.counters,
			WallClockMS: wallMS,
			StartTime:   startTime,
		}

		it.formatter.Render(buildFooter(s.catalog, it.counters, wallMS, result.Records, s.cfg))

		if s.cfg.XMLFile != "" {
			if err := xmlreport.Write(s.cfg.XMLFile, result.Records, wallMS, startTime); err != nil {
				s.diag.Fatalf("%v", err)
				os.Exit(1)
			}
		}

		if it.counters.Pass+it.counters.XFail != s.catalog.TotalTests {
			exitCode = 1
		}

		result.ExitCode = exitCode
		last = result
	}

	return last, nil
}

func orderedRecords(finished map[int]*record.Record, total int) []*record.Record {
	out := make([]*record.Record, 0, len(finished))
	for idx := 0; idx < total; idx++ {
		if r, ok := finished[idx]; ok {
			out = append(out, r)
		}
	}
	return out
}

func buildFooter(cat *catalog.Catalog, c format.Counters, wallMS int64, records []*record.Record, cfg *config.Config) format.Footer {
	f := format.Footer{
		TotalTests:    cat.TotalTests,
		TotalSuites:   cat.TotalSuites,
		TotalDisabled: cat.TotalDisabled,
		Counters:      c,
		WallClockMS:   wallMS,
	}
	for _, rec := range records {
		name := rec.Identity.String()
		switch {
		case rec.Classification() == record.Pass && rec.Slow:
			f.Slow = append(f.Slow, format.SectionEntry{
				Name: name,
				Suffix: fmt.Sprintf("(%d ms, exceeded %d ms)",
					clock.Millis(rec.ElapsedNS(rec.EndNS)), cfg.SlowThresholdMS),
			})
		}
		switch rec.Classification() {
		case record.XPass:
			f.XPass = append(f.XPass, format.SectionEntry{Name: name})
		case record.Timeout:
			f.Timeout = append(f.Timeout, format.SectionEntry{
				Name:   name,
				Suffix: fmt.Sprintf("(stopped at %d ms)", clock.Millis(rec.ElapsedNS(rec.EndNS))),
			})
		case record.Fail:
			f.Fail = append(f.Fail, format.SectionEntry{Name: name})
		}
	}
	return f
}

func (s *Scheduler) newIteration() *iteration {
	free := make([]int, s.cfg.JobCount)
	for i := range free {
		free[i] = s.cfg.JobCount - 1 - i // LIFO stack; pop from the end yields 0 first
	}

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT)

	return &iteration{
		s:            s,
		freeSlots:    free,
		slotToRecord: make(map[int]*record.Record),
		pidToSlot:    make(map[int]int),
		readEOF:      make(map[int]bool),
		pending:      make(map[int]pendingReap),
		finished:     make(map[int]*record.Record),
		outputs:      make(chan childproc.OutputMsg, 256),
		reaped:       make(chan childproc.ReapMsg, 64),
		children:     make(map[int]*childproc.Child),
		formatter:    format.New(s.out, s.color, s.cfg.PrintTime, s.cfg.GTestFormat),
		sigCh:        sigCh,
	}
}

// runLoop is the main loop: it repeats the five phases of §4.2 until every
// catalog index has a finished Record, or SIGINT ends the run early.
func (it *iteration) runLoop(ctx context.Context) {
	defer signal.Stop(it.sigCh)

	for len(it.finished) < it.s.catalog.TotalTests {
		it.launch(ctx)
		it.drainOutputs()
		it.reapFinished()
		it.enforceTimeouts()
		if it.serviceSignals() {
			return
		}

		time.Sleep(tickInterval)
	}
}

// launch is phase 1 (§4.2).
func (it *iteration) launch(ctx context.Context) {
	for len(it.freeSlots) > 0 && it.cursor < len(it.s.catalog.Tests) {
		slot := it.popSlot()
		id := it.s.catalog.Tests[it.cursor]
		testIndex := it.cursor
		it.cursor++

		rec := record.New(id, testIndex, slot)
		rec.StartNS = it.s.clock.NowNS()

		child, err := childproc.Spawn(ctx, it.s.cfg.ChildVector, id, slot, it.outputs, it.reaped)
		if err != nil {
			it.s.diag.Fatalf("spawning test %s: %v", id.String(), err)
			os.Exit(1)
		}
		rec.Pid = child.Pid

		it.slotToRecord[slot] = rec
		it.pidToSlot[child.Pid] = slot
		it.children[slot] = child

		it.formatter.OnStart(rec)
	}
}

// drainOutputs is phase 2: a non-blocking, exhaustive drain of every
// pending output chunk, standing in for a zero-timeout poll over the slot
// set (§4.2 phase 2, §5).
func (it *iteration) drainOutputs() {
	for {
		select {
		case msg := <-it.outputs:
			if len(msg.Data) > 0 {
				if rec, ok := it.slotToRecord[msg.SlotIndex]; ok {
					rec.AppendOutput(msg.Data)
				}
			}
			if msg.EOF {
				it.readEOF[msg.SlotIndex] = true
			}
		default:
			return
		}
	}
}

// reapFinished is phase 3: it loops until the non-blocking reap channel is
// empty, matching the requirement that reaping not stop after one child per
// tick (§9 "Reap ordering").
func (it *iteration) reapFinished() {
	for {
		select {
		case msg := <-it.reaped:
			it.handleReap(msg)
			continue
		default:
		}
		break
	}
	it.drainPendingReaps()
}

func (it *iteration) handleReap(msg childproc.ReapMsg) {
	if it.readEOF[msg.SlotIndex] {
		it.finalize(msg)
		return
	}
	it.pending[msg.SlotIndex] = pendingReap{
		msg:        msg,
		deadlineNS: it.s.clock.NowNS() + readWedgeCeiling.Nanoseconds(),
	}
}

// drainPendingReaps finalizes any reaped child whose output pipe has since
// closed, or whose 2-second drain ceiling has elapsed (§4.4).
func (it *iteration) drainPendingReaps() {
	now := it.s.clock.NowNS()
	for slot, p := range it.pending {
		if it.readEOF[slot] {
			delete(it.pending, slot)
			it.finalize(p.msg)
			continue
		}
		if now > p.deadlineNS {
			it.s.diag.Line("Reading of done process did not finish after 2 seconds.")
			delete(it.pending, slot)
			it.finalize(p.msg)
		}
	}
}

// finalize implements §4.5's reap-and-classify sequence for one Record.
func (it *iteration) finalize(msg childproc.ReapMsg) {
	rec, ok := it.slotToRecord[msg.SlotIndex]
	if !ok {
		return
	}
	rec.EndNS = it.s.clock.NowNS()

	if !rec.Classified() {
		switch {
		case msg.Signaled:
			rec.AppendLine("%s terminated by signal: %s.\n", rec.Identity.String(), capitalize(msg.SignalStr))
			rec.SetClassification(record.Fail)
		case msg.ExitCode != 0:
			rec.AppendLine("%s exited with exitcode %d.\n", rec.Identity.String(), msg.ExitCode)
			rec.SetClassification(record.Fail)
		default:
			rec.SetClassification(record.Pass)
		}
	} else if rec.Classification() == record.Timeout {
		rec.AppendLine("%s killed because of timeout at %d ms.\n", rec.Identity.String(), it.s.cfg.DeadlineThresholdMS)
	}

	if isExpectFail(rec.Identity, it.s.cfg.AllowDisabledTests) {
		switch rec.Classification() {
		case record.Fail:
			rec.SetClassification(record.XFail)
		case record.Pass:
			rec.SetClassification(record.XPass)
		}
	}

	it.formatter.OnFinish(rec)

	switch rec.Classification() {
	case record.Pass:
		it.counters.Pass++
		if rec.Slow {
			it.counters.Slow++
		}
	case record.XPass:
		it.counters.XPass++
	case record.Fail:
		it.counters.Fail++
	case record.XFail:
		it.counters.XFail++
	case record.Timeout:
		it.counters.Timeout++
	}

	it.finished[rec.TestIndex] = rec
	it.pushSlot(rec.SlotIndex)
	delete(it.slotToRecord, msg.SlotIndex)
	delete(it.pidToSlot, msg.Pid)
	delete(it.readEOF, msg.SlotIndex)
	delete(it.children, msg.SlotIndex)
}

// isExpectFail reports whether a test's suite or name marks it as expected
// to fail: a DISABLED_-prefixed identity that discovery surfaced only
// because allow-disabled was set (§4.5 step 4).
func isExpectFail(id record.Identity, allowDisabled bool) bool {
	if !allowDisabled {
		return false
	}
	return strings.HasPrefix(id.Suite, catalog.DisabledPrefix) ||
		strings.HasPrefix(id.Name, catalog.DisabledPrefix)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// enforceTimeouts is phase 4 (§4.2).
func (it *iteration) enforceTimeouts() {
	now := it.s.clock.NowNS()
	deadlineNS := it.s.cfg.DeadlineThresholdMS * int64(time.Millisecond)
	slowNS := it.s.cfg.SlowThresholdMS * int64(time.Millisecond)

	for slot, rec := range it.slotToRecord {
		if rec.Classified() {
			continue
		}
		elapsed := now - rec.StartNS
		switch {
		case elapsed > deadlineNS:
			rec.Slow = false
			rec.SetClassification(record.Timeout)
			if child, ok := it.children[slot]; ok {
				_ = child.Kill()
			}
		case elapsed > slowNS:
			rec.Slow = true
		}
	}
}

// serviceSignals is phase 5 (§4.7): it drains at most one pending signal
// per tick from the channel signal.Notify feeds, the idiomatic Go stand-in
// for the atomic-int-drained-by-the-loop design the original uses (any
// single-signal-per-tick channel satisfies the same contract, per §9).
// It returns true if the run should stop (SIGINT).
func (it *iteration) serviceSignals() bool {
	select {
	case sig := <-it.sigCh:
		switch sig {
		case syscall.SIGINT:
			it.s.diag.Line("Terminating due to signal...")
			for _, child := range it.children {
				_ = child.Kill()
			}
			it.sigInt = true
			return true
		case syscall.SIGQUIT:
			it.printInventory()
		}
	default:
	}
	return false
}

// printInventory implements the SIGQUIT handler (§4.7): one indented line
// per live Record, in test-index order.
func (it *iteration) printInventory() {
	fmt.Fprint(it.s.out, "List of current running tests:\n")

	indices := make([]int, 0, len(it.slotToRecord))
	byIndex := make(map[int]*record.Record, len(it.slotToRecord))
	for _, rec := range it.slotToRecord {
		indices = append(indices, rec.TestIndex)
		byIndex[rec.TestIndex] = rec
	}
	sortInts(indices)

	now := it.s.clock.NowNS()
	for _, idx := range indices {
		rec := byIndex[idx]
		line := fmt.Sprintf("  %s (elapsed time %d ms)", rec.Identity.String(), clock.Millis(rec.ElapsedNS(now)))
		fmt.Fprintln(it.s.out, format.TruncateInventoryLine(line))
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (it *iteration) popSlot() int {
	n := len(it.freeSlots)
	slot := it.freeSlots[n-1]
	it.freeSlots = it.freeSlots[:n-1]
	return slot
}

func (it *iteration) pushSlot(slot int) {
	it.freeSlots = append(it.freeSlots, slot)
}
