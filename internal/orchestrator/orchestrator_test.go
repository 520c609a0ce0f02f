package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/orchestrator"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/solver/solvertest"
)

const equations = "dA/dt = -k*A\ndB/dt = k*A - k*B"

type recorder struct {
	mu     sync.Mutex
	events []orchestrator.Event
}

func (r *recorder) listen(ev orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) of(kind orchestrator.Kind, typ orchestrator.EventType) []orchestrator.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orchestrator.Event
	for _, ev := range r.events {
		if ev.State.Kind == kind && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func ingest(o *orchestrator.Orchestrator, name, csv string) int {
	rows, err := observed.ReadCSV(strings.NewReader(csv))
	Expect(err).NotTo(HaveOccurred())
	var id int
	Expect(o.Update(func(s *session.State) error {
		d, _, err := s.Datasets.Ingest(name, rows, s.Model)
		if err != nil {
			return err
		}
		id = d.ID
		return nil
	})).To(Succeed())
	return id
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx    context.Context
		srv    *solvertest.Server
		o      *orchestrator.Orchestrator
		events *recorder
		unsub  func()
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = solvertest.NewServer(pk.Model{Compartments: []string{"A", "B"}, Parameters: []string{"k"}})
		o = orchestrator.New(srv.Client(), session.New(session.DefaultSettings()),
			orchestrator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			orchestrator.WithTickInterval(5*time.Millisecond),
			orchestrator.WithTimeouts(time.Second, 5*time.Second, 5*time.Second),
		)
		events = &recorder{}
		unsub = o.Subscribe(events.listen)
	})

	AfterEach(func() {
		unsub()
		Expect(o.Close(ctx)).To(Succeed())
		srv.Close()
	})

	Describe("Parse", func() {
		It("installs the model and defaults every value", func() {
			m, err := o.Parse(ctx, equations)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Compartments).To(Equal([]string{"A", "B"}))

			o.View(func(s *session.State) {
				Expect(s.Initials).To(Equal(map[string]float64{"A": 0, "B": 0}))
				Expect(s.Fit.Values).To(HaveKeyWithValue("k", 0.0))
				Expect(s.Settings.SelectedCompartments).To(Equal([]string{"A", "B"}))
			})
		})

		It("leaves the session untouched on failure", func() {
			srv.FailWith("parse", "Failed to parse compartments or equations from input.")
			_, err := o.Parse(ctx, equations)

			var serr *pk.SolverError
			Expect(errors.As(err, &serr)).To(BeTrue())
			o.View(func(s *session.State) {
				Expect(s.Model).To(BeNil())
				Expect(s.Equations).To(BeEmpty())
			})
		})
	})

	Describe("SubmitSimulate", func() {
		It("is rejected before parsing without calling the service", func() {
			_, err := o.SubmitSimulate(ctx)

			Expect(err).To(MatchError(pk.ErrModelNotParsed))
			Expect(srv.Calls("simulate")).To(BeZero())
			Expect(o.State(orchestrator.Simulate).Phase).To(Equal(orchestrator.Failed))
		})

		It("simulates a bolus into A over an inclusive grid", func() {
			_, err := o.Parse(ctx, equations)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Update(func(s *session.State) error {
				if _, err := s.AddDose(dosing.Protocol{Compartment: "A", Kind: dosing.Bolus, Amount: 10, StartTime: 0}); err != nil {
					return err
				}
				return s.SetSettings(session.Settings{Start: 0, End: 24, Steps: 100, SelectedCompartments: []string{"A", "B"}})
			})).To(Succeed())

			t, err := o.SubmitSimulate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Wait(ctx)).To(Succeed())

			st := o.State(orchestrator.Simulate)
			Expect(st.Phase).To(Equal(orchestrator.Succeeded))
			Expect(st.Progress).To(Equal(orchestrator.ProgressDone))

			o.View(func(s *session.State) {
				Expect(s.LatestSimulation).NotTo(BeNil())
				Expect(s.LatestSimulation.Profile.Len()).To(Equal(100))
				Expect(s.LatestSimulation.Profile.Time[99]).To(Equal(24.0))
				_, okA := s.LatestSimulation.PK.Lookup("A")
				_, okB := s.LatestSimulation.PK.Lookup("B")
				Expect(okA && okB).To(BeTrue())
			})
			done := events.of(orchestrator.Simulate, orchestrator.EventSucceeded)
			Expect(done).To(HaveLen(1))
			Expect(done[0].SimulateRequest.TSteps).To(Equal(100))
		})

		It("keeps the previous result when the service fails", func() {
			_, err := o.Parse(ctx, equations)
			Expect(err).NotTo(HaveOccurred())
			t, err := o.SubmitSimulate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Wait(ctx)).To(Succeed())

			srv.RespondStatus("simulate", http.StatusBadGateway)
			t, err = o.SubmitSimulate(ctx)
			Expect(err).NotTo(HaveOccurred())
			err = t.Wait(ctx)

			var terr *pk.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Status).To(Equal(http.StatusBadGateway))
			st := o.State(orchestrator.Simulate)
			Expect(st.Phase).To(Equal(orchestrator.Failed))
			Expect(st.LastError).To(MatchError(err))
			o.View(func(s *session.State) {
				Expect(s.LatestSimulation).NotTo(BeNil())
			})
		})

		It("rejects a second simulation while one is running", func() {
			_, err := o.Parse(ctx, equations)
			Expect(err).NotTo(HaveOccurred())
			release := srv.Hold("simulate")
			defer release()

			t, err := o.SubmitSimulate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return srv.Calls("simulate") }).Should(Equal(1))

			_, err = o.SubmitSimulate(ctx)
			Expect(err).To(MatchError(orchestrator.ErrBusy))
			Consistently(func() int { return srv.Calls("simulate") }, 50*time.Millisecond).Should(Equal(1))
			Expect(o.State(orchestrator.Simulate).Phase).To(Equal(orchestrator.Running))

			release()
			Expect(t.Wait(ctx)).To(Succeed())
		})
	})

	Describe("SubmitFit", func() {
		BeforeEach(func() {
			_, err := o.Parse(ctx, equations)
			Expect(err).NotTo(HaveOccurred())
			d1 := ingest(o, "group1.csv", "time,B\n0,0\n1,4.1\n2,5.2\n4,3.9\n")
			d2 := ingest(o, "group2.csv", "time,B\n0,0\n1,8.3\n2,10.1\n4,7.7\n")
			Expect(o.Update(func(s *session.State) error {
				for i, ds := range []int{d1, d2} {
					gid := s.Groups.AddGroup(s.Datasets)
					if err := s.Groups.SetDataset(gid, ds); err != nil {
						return err
					}
					amount := 10.0 * float64(i+1)
					if _, err := s.AddGroupDose(gid, dosing.Protocol{Compartment: "A", Kind: dosing.Bolus, Amount: amount}); err != nil {
						return err
					}
				}
				if err := s.SetParameter("k", 1); err != nil {
					return err
				}
				s.Fit.SetFree("k", true)
				return s.Fit.SetBounds("k", fitting.Closed(0.01, 10))
			})).To(Succeed())
		})

		It("fits k across two groups, writes it back and re-simulates", func() {
			t, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Wait(ctx)).To(Succeed())

			sent := srv.LastFit()
			Expect(sent.Groups).To(HaveLen(2))
			Expect(sent.Groups[1].Doses[0].Amount).To(Equal(20.0))

			ev := events.of(orchestrator.Fit, orchestrator.EventSucceeded)
			Expect(ev).To(HaveLen(1))
			Expect(ev[0].Fit.Params).To(HaveLen(1))
			k := ev[0].Fit.Params[0]
			Expect(k.Name).To(Equal("k"))
			Expect(k.Value).To(BeNumerically(">=", 0.01))
			Expect(k.Value).To(BeNumerically("<=", 10))
			Expect(ev[0].Applied).To(Equal([]string{"k"}))
			Expect(ev[0].FitRequest.FitParams).To(Equal([]string{"k"}))

			o.View(func(s *session.State) {
				Expect(s.Fit.Value("k")).To(Equal(k.Value))
				Expect(s.Estimates).To(HaveKey("k"))
				Expect(s.LatestFit).NotTo(BeNil())
			})

			chained, err := t.Chained()
			Expect(err).NotTo(HaveOccurred())
			Expect(chained.Wait(ctx)).To(Succeed())
			Expect(srv.LastSimulate().Parameters["k"]).To(Equal(k.Value))
			Expect(o.State(orchestrator.Fit).Progress).To(Equal(orchestrator.ProgressDone))
		})

		It("is single-flight and accepts again once the run resolves", func() {
			release := srv.Hold("fit")
			defer release()

			first, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return srv.Calls("fit") }).Should(Equal(1))

			_, err = o.SubmitFit(ctx)
			Expect(err).To(MatchError(orchestrator.ErrBusy))
			Expect(events.of(orchestrator.Fit, orchestrator.EventRejected)).To(HaveLen(1))
			Consistently(func() int { return srv.Calls("fit") }, 50*time.Millisecond).Should(Equal(1))

			release()
			Expect(first.Wait(ctx)).To(Succeed())
			chained, _ := first.Chained()
			Expect(chained.Wait(ctx)).To(Succeed())

			second, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Wait(ctx)).To(Succeed())
			Expect(srv.Calls("fit")).To(Equal(2))
		})

		It("advances progress toward but never to 100 while running", func() {
			release := srv.Hold("fit")
			defer release()

			t, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return len(events.of(orchestrator.Fit, orchestrator.EventTick)) }).Should(BeNumerically(">=", 5))

			ticks := events.of(orchestrator.Fit, orchestrator.EventTick)
			for i := 1; i < len(ticks); i++ {
				Expect(ticks[i].State.Progress).To(BeNumerically(">", ticks[i-1].State.Progress))
				Expect(ticks[i].State.Progress).To(BeNumerically("<", orchestrator.ProgressCeiling))
			}

			release()
			Expect(t.Wait(ctx)).To(Succeed())
			n := len(events.of(orchestrator.Fit, orchestrator.EventTick))
			Consistently(func() int { return len(events.of(orchestrator.Fit, orchestrator.EventTick)) }, 50*time.Millisecond).Should(Equal(n))
		})

		It("rejects an empty free set without calling the service", func() {
			Expect(o.Update(func(s *session.State) error {
				s.Fit.SetFree("k", false)
				return nil
			})).To(Succeed())

			_, err := o.SubmitFit(ctx)

			var verr *pk.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(err).To(MatchError(fitting.ErrNoFreeParameters))
			Expect(srv.Calls("fit")).To(BeZero())
			st := o.State(orchestrator.Fit)
			Expect(st.Phase).To(Equal(orchestrator.Failed))
			Expect(st.LastError).To(MatchError(err))
		})

		It("freezes progress and keeps prior values on a solver error", func() {
			srv.FailWith("fit", "Optimization algorithm failed: residuals are not finite")

			t, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			err = t.Wait(ctx)

			var serr *pk.SolverError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Message).To(ContainSubstring("residuals are not finite"))
			st := o.State(orchestrator.Fit)
			Expect(st.Phase).To(Equal(orchestrator.Failed))
			Expect(st.Progress).To(BeNumerically("<", orchestrator.ProgressDone))
			o.View(func(s *session.State) {
				Expect(s.Fit.Value("k")).To(Equal(1.0))
				Expect(s.LatestFit).To(BeNil())
			})
			chained, _ := t.Chained()
			Expect(chained).To(BeNil())
			Expect(srv.Calls("simulate")).To(BeZero())
		})

		It("does not chain a simulation while the user's own is still running", func() {
			releaseSim := srv.Hold("simulate")
			defer releaseSim()
			sim, err := o.SubmitSimulate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return srv.Calls("simulate") }).Should(Equal(1))

			fit, err := o.SubmitFit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fit.Wait(ctx)).To(Succeed())

			_, chainErr := fit.Chained()
			Expect(chainErr).To(MatchError(orchestrator.ErrBusy))

			releaseSim()
			Expect(sim.Wait(ctx)).To(Succeed())
		})
	})

	Describe("LoadDocument", func() {
		It("replays a saved document idempotently", func() {
			doc := session.Document{
				Equations:  equations,
				Initials:   map[string]float64{"A": 2},
				Parameters: map[string]float64{"k": 0.4, "gone": 1},
				Doses:      []dosing.Protocol{{Compartment: "A", Kind: dosing.Bolus, Amount: 5}},
				Settings:   session.Settings{End: 12, Steps: 50},
			}
			for i := 0; i < 2; i++ {
				skipped, err := o.LoadDocument(ctx, doc)
				Expect(err).NotTo(HaveOccurred())
				Expect(skipped.Parameters).To(Equal([]string{"gone"}))
			}
			o.View(func(s *session.State) {
				Expect(s.Fit.Value("k")).To(Equal(0.4))
				Expect(s.Initials["A"]).To(Equal(2.0))
				Expect(s.Doses.Len()).To(Equal(1))
				Expect(s.Settings.Steps).To(Equal(50))
			})
		})
	})
})
