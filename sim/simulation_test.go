package sim

import (
	"bytes"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Simulation", func() {
	var (
		mockCtrl *gomock.Controller
		ctx      *Env
		out      *bytes.Buffer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ctx = NewEnv()
		out = new(bytes.Buffer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(processes ...any) *Simulation {
		s, err := MakeBuilder().
			WithEnv(ctx).
			WithOutput(out).
			Build(processes...)
		Expect(err).NotTo(HaveOccurred())

		return s
	}

	Context("termination", func() {
		It("should stop at once when there is nothing to run", func() {
			s := build()

			term, err := s.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(term.Reason).To(Equal(NoMoreEvents))
			Expect(term.Status()).To(Equal(0))
			Expect(out.String()).To(Equal("StopSimulation: No more events\n"))
		})

		It("should stop after the requested duration", func() {
			var fast, slow []VTime
			s := build(ticker(ctx, 5, &fast), ticker(ctx, 10, &slow))

			term, err := s.Run(WithDuration(21))

			Expect(err).NotTo(HaveOccurred())
			Expect(fast).To(Equal([]VTime{5, 10, 15, 20}))
			Expect(slow).To(Equal([]VTime{10, 20}))
			Expect(term.Reason).To(Equal(DurationElapsed))
			Expect(term.Duration).To(Equal(VTime(21)))
			Expect(term.Time).To(Equal(VTime(21)))
			Expect(term.Status()).To(Equal(1))
			Expect(out.String()).To(
				Equal("StopSimulation: Simulated for duration 21\n"))
		})

		It("should report status 0 when the duration drains the timeline", func() {
			var resumed []VTime
			s := build(waitOnce(ctx, Wait(Delay(3)), &resumed))

			term, err := s.Run(WithDuration(10))

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{3}))
			Expect(term.Reason).To(Equal(DurationElapsed))
			Expect(term.Time).To(Equal(VTime(10)))
			Expect(term.Status()).To(Equal(0))
		})

		It("should stop after settling the current time with a zero duration", func() {
			var wakes []VTime
			s := build(ticker(ctx, 5, &wakes))

			term, err := s.Run(WithDuration(0))

			Expect(err).NotTo(HaveOccurred())
			Expect(wakes).To(BeEmpty())
			Expect(term.Reason).To(Equal(DurationElapsed))
			Expect(term.Time).To(Equal(VTime(0)))
			Expect(ctx.NumPending()).To(Equal(1))
		})

		It("should continue a stopped simulation", func() {
			var fast, slow []VTime
			s := build(ticker(ctx, 5, &fast), ticker(ctx, 10, &slow))

			_, err := s.Run(WithDuration(7), Quiet())
			Expect(err).NotTo(HaveOccurred())
			Expect(fast).To(Equal([]VTime{5}))

			term, err := s.Run(WithDuration(14), Quiet())
			Expect(err).NotTo(HaveOccurred())
			Expect(term.Time).To(Equal(VTime(21)))
			Expect(fast).To(Equal([]VTime{5, 10, 15, 20}))
			Expect(slow).To(Equal([]VTime{10, 20}))
			Expect(out.String()).To(BeEmpty())
		})

		It("should reject a duration past the end of the time range", func() {
			var wakes []VTime
			s := build(ticker(ctx, 5, &wakes))

			_, err := s.Run(WithDuration(5), Quiet())
			Expect(err).NotTo(HaveOccurred())

			term, err := s.Run(WithDuration(math.MaxUint64), Quiet())

			Expect(term).To(BeNil())
			Expect(errors.Is(err, ErrTimeOverflow)).To(BeTrue())
			Expect(ctx.Now()).To(Equal(VTime(5)))
			Expect(wakes).To(Equal([]VTime{5}))
		})

		It("should not print when built quiet", func() {
			s, err := MakeBuilder().
				WithEnv(ctx).
				WithOutput(out).
				WithQuiet().
				Build(completed())
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(BeEmpty())
		})
	})

	Context("construction", func() {
		It("should flatten nested collections of processes", func() {
			var order []string
			named := func(name string) Process {
				return ProcessFunc(func() (Clause, bool) {
					order = append(order, name)
					return nil, false
				})
			}

			s := build(
				named("a"),
				[]any{named("b"), []Process{named("c")}},
				[1]Process{named("d")},
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"a", "b", "c", "d"}))
		})

		It("should reject arguments that are not processes", func() {
			_, err := NewSimulation(ctx, 42)

			var argErr *InvalidArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Path).To(Equal("0"))
			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should locate a bad argument inside nested collections", func() {
			_, err := NewSimulation(ctx,
				completed(),
				[]any{completed(), []any{completed(), "x"}},
			)

			var argErr *InvalidArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Path).To(Equal("1.1.1"))
			Expect(argErr.Value).To(Equal("x"))
		})

		It("should reject nil", func() {
			_, err := NewSimulation(ctx, nil)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should reject processes wrapping nil", func() {
			_, err := NewSimulation(ctx, (*GeneratorProcess)(nil))
			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())

			_, err = NewSimulation(ctx,
				[]Process{completed(), ProcessFunc(nil)})

			var argErr *InvalidArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Path).To(Equal("0.1"))
		})

		It("should reset the environment", func() {
			sig := newTestSignal(ctx)
			sig.set(1)
			Expect(ctx.Schedule(4, eventFunc(func() []*Task { return nil }))).
				To(Succeed())

			build()

			Expect(ctx.Now()).To(Equal(VTime(0)))
			Expect(ctx.NumDirty()).To(Equal(0))
			Expect(ctx.NumPending()).To(Equal(0))
		})
	})

	Context("resumption", func() {
		It("should resume once per suspension when two signals fire together", func() {
			a := newTestSignal(ctx)
			b := newTestSignal(ctx)
			var resumed []VTime

			s := build(
				waitForever(ctx, Wait(On(a), On(b)), &resumed),
				script(1,
					func() { a.set(1); b.set(1) },
					func() { b.set(2) },
					func() { a.set(2) },
				),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{1, 2, 3}))
		})

		It("should resume once when one clause schedules the same time twice", func() {
			var resumed []VTime
			s := build(waitForever(ctx, Wait(Delay(2), Delay(2)), &resumed))

			_, err := s.Run(WithDuration(7), Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{2, 4, 6}))
		})

		It("should resume a process yielding the immediate marker in the same cycle", func() {
			var resumed []VTime
			count := 0
			p := Generator(func(yield func(Clause) bool) {
				for count < 3 && yield(Wait(Immediate)) {
					count++
					resumed = append(resumed, ctx.Now())
				}
			})
			s := build(p)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{0, 0, 0}))
			Expect(s.Stats().DeltaCycles).To(Equal(uint64(1)))
			Expect(s.Stats().TimeAdvances).To(Equal(uint64(0)))
		})

		It("should resume the mocked process once per suspension", func() {
			proc := NewMockProcess(mockCtrl)
			gomock.InOrder(
				proc.EXPECT().Resume().Return(Wait(Delay(2), Delay(2), Immediate), true),
				proc.EXPECT().Resume().Return(nil, false),
			)
			s := build(proc)

			term, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(term.Reason).To(Equal(NoMoreEvents))
			Expect(s.Stats().Resumptions).To(Equal(uint64(2)))
		})
	})

	Context("delta cycles", func() {
		It("should wake signal waiters before time advances", func() {
			sig := newTestSignal(ctx)
			var resumed, late []VTime
			var seen int

			writer := ProcessFunc(func() (Clause, bool) {
				sig.set(1)
				return nil, false
			})
			observer := Generator(func(yield func(Clause) bool) {
				if yield(Wait(Delay(1))) {
					seen = sig.val
					late = append(late, ctx.Now())
				}
			})
			s := build(waitOnce(ctx, Wait(On(sig)), &resumed), writer, observer)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{0}))
			Expect(late).To(Equal([]VTime{1}))
			Expect(seen).To(Equal(1))
		})

		It("should settle chains of signal changes at the same time", func() {
			a := newTestSignal(ctx)
			b := newTestSignal(ctx)
			var resumed []VTime

			relay := Generator(func(yield func(Clause) bool) {
				for yield(Wait(On(a))) {
					b.set(a.val)
				}
			})
			s := build(
				relay,
				waitForever(ctx, Wait(On(b)), &resumed),
				script(3, func() { a.set(1) }),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{3}))
			Expect(s.Stats().TimeAdvances).To(Equal(uint64(1)))
		})

		It("should deliver applyable events at their due-time", func() {
			sig := newTestSignal(ctx)
			var resumed []VTime
			s := build(waitOnce(ctx, Wait(On(sig)), &resumed))
			Expect(ctx.Schedule(5, eventFunc(func() []*Task {
				sig.set(7)
				return nil
			}))).To(Succeed())

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{5}))
		})

		It("should never move time backwards", func() {
			var wakes []VTime
			s := build(ticker(ctx, 3, &wakes), ticker(ctx, 7, &wakes))
			s.AcceptHook(HookFunc(func(hc HookCtx) {
				if hc.Pos == HookPosTimeAdvance {
					Expect(hc.Now).To(BeNumerically(">", hc.Detail.(VTime)))
				}
			}))

			_, err := s.Run(WithDuration(30), Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(ctx.Schedule(29, eventFunc(nil))).
				To(MatchError(ErrPastEvent))
		})
	})

	Context("sub-processes", func() {
		It("should resume the caller in the same cycle when the callee completes at once", func() {
			var resumed []VTime
			s := build(waitOnce(ctx, Wait(Call(completed())), &resumed))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{0}))
			Expect(s.Stats().DeltaCycles).To(Equal(uint64(1)))
			Expect(s.Stats().TimeAdvances).To(Equal(uint64(0)))
		})

		It("should resume the caller when the callee completes later", func() {
			var resumed, inner []VTime
			callee := waitOnce(ctx, Wait(Delay(4)), &inner)
			s := build(waitOnce(ctx, Wait(Call(callee)), &resumed))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(inner).To(Equal([]VTime{4}))
			Expect(resumed).To(Equal([]VTime{4}))
		})

		It("should give sub-processes their own task IDs", func() {
			ids := map[string]bool{}
			callee := script(1, func() {})
			s := build(Generator(func(yield func(Clause) bool) {
				yield(Wait(Call(callee)))
			}))
			s.AcceptHook(HookFunc(func(hc HookCtx) {
				if hc.Pos == HookPosBeforeResume {
					ids[hc.Item.(*Task).ID()] = true
				}
			}))

			Expect(s.TaskIDs()).To(HaveLen(1))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(2))
			Expect(s.TaskIDs()).To(BeEmpty())
		})
	})

	Context("joins", func() {
		It("should wait for both a signal and a timer", func() {
			a := newTestSignal(ctx)
			var resumed []VTime
			s := build(
				waitOnce(ctx, Wait(Join(On(a), Delay(3))), &resumed),
				script(1, func() { a.set(1) }),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{3}))
		})

		It("should wait for a signal that fires after the timer", func() {
			a := newTestSignal(ctx)
			var resumed []VTime
			s := build(
				waitOnce(ctx, Wait(Join(On(a), Delay(3))), &resumed),
				script(5, func() { a.set(1) }),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{5}))
		})

		DescribeTable("should release exactly once whatever the firing order",
			func(delays []VTime, expected VTime) {
				triggers := make([]Trigger, 0, len(delays))
				for _, d := range delays {
					triggers = append(triggers, Delay(d))
				}

				var resumed []VTime
				s := build(waitOnce(ctx, Wait(Join(triggers...)), &resumed))

				_, err := s.Run(Quiet())

				Expect(err).NotTo(HaveOccurred())
				Expect(resumed).To(Equal([]VTime{expected}))
			},
			Entry("single trigger", []VTime{4}, VTime(4)),
			Entry("ascending", []VTime{1, 2, 3}, VTime(3)),
			Entry("descending", []VTime{3, 2, 1}, VTime(3)),
			Entry("mixed", []VTime{2, 5, 1, 4}, VTime(5)),
			Entry("simultaneous", []VTime{2, 2, 2}, VTime(2)),
		)

		It("should count a sub-trigger once even if its signal fires again", func() {
			a := newTestSignal(ctx)
			var resumed []VTime
			s := build(
				waitOnce(ctx, Wait(Join(On(a), Delay(5))), &resumed),
				script(1, func() { a.set(1) }, func() { a.set(2) }),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{5}))
		})

		It("should treat the immediate marker as a fired sub-trigger", func() {
			var resumed []VTime
			s := build(waitOnce(ctx, Wait(Join(Immediate, Delay(2))), &resumed))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{2}))
		})

		It("should support joins nested in joins", func() {
			a := newTestSignal(ctx)
			var resumed []VTime
			s := build(
				waitOnce(ctx,
					Wait(Join(On(a), Join(Delay(1), Delay(6)))),
					&resumed),
				script(2, func() { a.set(1) }),
			)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{6}))
		})

		It("should let a join race with other triggers", func() {
			var resumed []VTime
			s := build(waitForever(ctx,
				Wait(Delay(10), Join(Delay(1), Delay(2))),
				&resumed))

			_, err := s.Run(WithDuration(5), Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{2, 4}))
		})

		It("should await a join through a call", func() {
			var resumed []VTime
			join := Join(Delay(1), Delay(3)).(JoinTrigger)
			s := build(waitOnce(ctx, Wait(Call(join.Process())), &resumed))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{3}))
		})
	})

	Context("malformed clauses", func() {
		DescribeTable("should fail the run",
			func(c Clause) {
				p := ProcessFunc(func() (Clause, bool) { return c, true })
				s := build(p)

				term, err := s.Run(Quiet())

				Expect(term).To(BeNil())
				Expect(errors.Is(err, ErrClauseType)).To(BeTrue())

				var clauseErr *ClauseTypeError
				Expect(errors.As(err, &clauseErr)).To(BeTrue())
				Expect(clauseErr.TaskID).NotTo(BeEmpty())
			},
			Entry("empty clause", Wait()),
			Entry("nil trigger", Clause{nil}),
			Entry("join without triggers", Wait(Join())),
			Entry("nil wait list", Wait(On(nil))),
			Entry("nil sub-process", Wait(Call(nil))),
			Entry("nil generator", Wait(Call((*GeneratorProcess)(nil)))),
			Entry("nil step function", Wait(Call(ProcessFunc(nil)))),
			Entry("named nil sub-process", Wait(Call(WithName("x", nil)))),
			Entry("pointer trigger", Wait(&DelayTrigger{Duration: 1})),
			Entry("foreign trigger", Wait(bogusTrigger{})),
			Entry("malformed join member", Wait(Join(Delay(1), nil))),
		)

		It("should reject a delay past the end of the time range", func() {
			step := 0
			p := ProcessFunc(func() (Clause, bool) {
				step++
				if step == 1 {
					return Wait(Delay(5)), true
				}

				return Wait(Delay(math.MaxUint64)), true
			})
			s := build(p)

			term, err := s.Run(Quiet())

			Expect(term).To(BeNil())
			Expect(errors.Is(err, ErrClauseType)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("overflows"))
			Expect(ctx.Now()).To(Equal(VTime(5)))
		})
	})

	Context("co-simulation", func() {
		It("should put only after the bridge produced output", func() {
			cosim := NewMockCoSimulator(mockCtrl)
			gomock.InOrder(
				cosim.EXPECT().Get().Return(nil),
				cosim.EXPECT().Put().Return(nil),
				cosim.EXPECT().Get().Return(nil),
			)

			var resumed []VTime
			s, err := MakeBuilder().
				WithEnv(ctx).
				WithCoSimulator(cosim).
				WithQuiet().
				Build(waitOnce(ctx, Wait(Delay(1)), &resumed))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{1}))
		})

		It("should restart the delta cycle when the bridge drives a signal", func() {
			sig := newTestSignal(ctx)
			cosim := NewMockCoSimulator(mockCtrl)
			gomock.InOrder(
				cosim.EXPECT().Get().DoAndReturn(func() error {
					sig.set(1)
					return nil
				}),
				cosim.EXPECT().Put().Return(nil),
				cosim.EXPECT().Get().Return(nil),
			)

			var resumed []VTime
			s, err := MakeBuilder().
				WithEnv(ctx).
				WithCoSimulator(cosim).
				WithQuiet().
				Build(waitOnce(ctx, Wait(On(sig)), &resumed))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(resumed).To(Equal([]VTime{0}))
		})

		It("should return bridge failures", func() {
			pipeErr := errors.New("pipe closed")
			cosim := NewMockCoSimulator(mockCtrl)
			cosim.EXPECT().Get().Return(pipeErr)

			s, err := MakeBuilder().
				WithEnv(ctx).
				WithCoSimulator(cosim).
				Build(completed())
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run()

			Expect(err).To(MatchError(pipeErr))
		})
	})

	Context("hooks", func() {
		It("should invoke hooks in run-loop order", func() {
			var positions []string
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().Func(gomock.Any()).
				Do(func(hc HookCtx) { positions = append(positions, hc.Pos.Name) }).
				AnyTimes()

			var resumed []VTime
			s := build(waitOnce(ctx, Wait(Delay(1)), &resumed))
			s.AcceptHook(hook)

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(positions).To(Equal([]string{
				"BeforeResume", "AfterResume", "DeltaCycle",
				"TimeAdvance",
				"BeforeResume", "TaskComplete", "DeltaCycle",
				"Terminate",
			}))
		})

		It("should name tasks after named processes", func() {
			var names []string
			s := build(
				NamedGenerator("clk", func(yield func(Clause) bool) {}),
				WithName("rst", completed()),
			)
			s.AcceptHook(HookFunc(func(hc HookCtx) {
				if hc.Pos == HookPosTaskComplete {
					names = append(names, hc.Item.(*Task).Name())
				}
			}))

			_, err := s.Run(Quiet())

			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"clk", "rst"}))
		})
	})

	Context("pausing", func() {
		It("should hold the run loop until continued", func() {
			var wakes []VTime
			s := build(ticker(ctx, 1, &wakes))
			s.Pause()

			done := make(chan *Termination, 1)
			go func() {
				term, _ := s.Run(WithDuration(50), Quiet())
				done <- term
			}()

			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			Expect(s.IsPaused()).To(BeTrue())

			s.Continue()

			var term *Termination
			Eventually(done).Should(Receive(&term))
			Expect(term.Time).To(Equal(VTime(50)))
		})
	})

	Context("inspection", func() {
		It("should describe suspended tasks", func() {
			sig := newTestSignal(ctx)
			var resumed []VTime
			s := build(WithName("worker",
				waitOnce(ctx, Wait(Join(Delay(3), On(sig))), &resumed)))

			_, err := s.Run(WithDuration(1), Quiet())
			Expect(err).NotTo(HaveOccurred())

			info, ok := s.TaskInfo("1")
			Expect(ok).To(BeTrue())
			Expect(info).To(Equal(TaskInfo{
				ID:            "1",
				Name:          "worker",
				GateRemaining: 2,
			}))

			_, ok = s.TaskInfo("9")
			Expect(ok).To(BeFalse())
		})

		It("should describe tasks while the simulation runs", func() {
			var wakes []VTime
			s := build(ticker(ctx, 1, &wakes))

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)

				_, err := s.Run(WithDuration(2000), Quiet())
				Expect(err).NotTo(HaveOccurred())
			}()

			for running := true; running; {
				select {
				case <-done:
					running = false
				default:
					info, ok := s.TaskInfo("1")
					Expect(ok).To(BeTrue())
					Expect(info.ID).To(Equal("1"))
				}
			}

			Expect(wakes).To(HaveLen(2000))
		})
	})

	Context("closing", func() {
		It("should stop suspended processes", func() {
			cleaned := 0
			body := func(yield func(Clause) bool) {
				defer func() { cleaned++ }()
				for yield(Wait(Delay(4))) {
				}
			}
			s := build(Generator(body), WithName("named", Generator(body)))

			_, err := s.Run(WithDuration(10), Quiet())
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(Equal(0))

			s.Close()

			Expect(cleaned).To(Equal(2))
			Expect(s.TaskIDs()).To(BeEmpty())

			term, err := s.Run(Quiet())
			Expect(err).NotTo(HaveOccurred())
			Expect(term.Reason).To(Equal(NoMoreEvents))
			Expect(cleaned).To(Equal(2))
		})
	})
})
