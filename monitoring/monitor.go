// Package monitoring serves a running simulation over HTTP so that it can be
// observed and controlled from outside.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/simkernel/monitoring/web"
	"github.com/sarchlab/simkernel/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	simulator   *sim.Simulator
	portNumber  int
	openBrowser bool
	logger      logrus.FieldLogger
	ids         sim.IDGenerator

	registry *prometheus.Registry
	metrics  *MetricsHook

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	runLock sync.Mutex
	running bool
	runDone chan struct{}
	lastErr error

	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()

	return &Monitor{
		logger:   logrus.StandardLogger(),
		ids:      sim.NewXIDGenerator(),
		registry: reg,
		metrics:  NewMetricsHook(reg),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.WithField("port", portNumber).
			Warn("port not allowed for the monitoring server, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// WithOpenBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterSimulator registers the simulator to monitor and attaches the
// metrics and progress hooks to it.
func (m *Monitor) RegisterSimulator(s *sim.Simulator) {
	m.simulator = s

	s.AcceptHook(m.metrics)

	bar := m.CreateProgressBar("processes", 0)
	s.AcceptHook(NewProcessProgressHook(bar))
}

// Registry returns the Prometheus registry the monitor exports.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseSimulator)
	r.HandleFunc("/api/continue", m.continueSimulator)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/step", m.step)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{name}", m.processDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// Listen binds the server port and returns the URL of the monitor.
func (m *Monitor) Listen() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.WithField("url", url).Info("monitoring simulation")

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open browser")
		}
	}

	return url, nil
}

// Serve serves the monitor until ctx is done.
func (m *Monitor) Serve(ctx context.Context) error {
	if m.listener == nil {
		if _, err := m.Listen(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(m.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}

// StartServer starts the monitor as a web server in the background.
func (m *Monitor) StartServer() {
	_, err := m.Listen()
	dieOnErr(err)

	go func() {
		err := m.Serve(context.Background())
		dieOnErr(err)
	}()
}

func (m *Monitor) pauseSimulator(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulator(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now    float64 `json:"now"`
	Paused bool    `json:"paused"`
	Busy   bool    `json:"busy"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{
		Now:    float64(m.simulator.Now()),
		Paused: m.simulator.IsPaused(),
		Busy:   m.isRunning(),
	})
}

func (m *Monitor) isRunning() bool {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	return m.running
}

// claimDriver marks the simulator as driven by the monitor. It fails if a run
// started from the monitor is still in progress.
func (m *Monitor) claimDriver() bool {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.running {
		return false
	}

	m.running = true
	m.runDone = make(chan struct{})

	return true
}

func (m *Monitor) releaseDriver(err error) {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	m.running = false
	m.lastErr = err
	close(m.runDone)
}

// WaitRun blocks until the run started from the monitor, if any, completes,
// and returns its error.
func (m *Monitor) WaitRun() error {
	m.runLock.Lock()
	done := m.runDone
	m.runLock.Unlock()

	if done == nil {
		return nil
	}

	<-done

	m.runLock.Lock()
	defer m.runLock.Unlock()

	return m.lastErr
}

// Run runs the simulator until the horizon on the calling goroutine. Step and
// run requests are refused while it is running.
func (m *Monitor) Run(until sim.VTimeInSec) error {
	if err := m.checkHorizon(until); err != nil {
		return err
	}

	if !m.claimDriver() {
		return errors.New("simulation is already running")
	}

	err := m.simulator.Run(until)
	m.releaseDriver(err)

	return err
}

func (m *Monitor) checkHorizon(until sim.VTimeInSec) error {
	now := m.simulator.Now()
	if math.IsNaN(float64(until)) || until < now {
		return &sim.InvalidHorizonError{Until: until, Now: now}
	}

	return nil
}

type stepRsp struct {
	Dispatched bool    `json:"dispatched"`
	Now        float64 `json:"now"`
}

func (m *Monitor) step(w http.ResponseWriter, _ *http.Request) {
	if !m.claimDriver() {
		http.Error(w, "simulation is running", http.StatusConflict)
		return
	}

	dispatched, err := m.simulator.Step()
	m.releaseDriver(err)

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, stepRsp{
		Dispatched: dispatched,
		Now:        float64(m.simulator.Now()),
	})
}

type runRsp struct {
	Until *float64 `json:"until"`
}

func (m *Monitor) run(w http.ResponseWriter, r *http.Request) {
	until := sim.InfiniteTime

	if s := r.URL.Query().Get("until"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, "invalid until: "+err.Error(), http.StatusBadRequest)
			return
		}

		until = sim.VTimeInSec(v)
	}

	if err := m.checkHorizon(until); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !m.claimDriver() {
		http.Error(w, "simulation is running", http.StatusConflict)
		return
	}

	go func() {
		err := m.simulator.Run(until)
		if err != nil {
			m.logger.WithError(err).Error("run started from monitor failed")
		}

		m.releaseDriver(err)
	}()

	writeJSONWithStatus(w, http.StatusAccepted, runRsp{Until: finiteOrNil(until)})
}

type eventRsp struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Time *float64 `json:"time"`
}

func (m *Monitor) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var rsp []eventRsp

	m.simulator.Inspect(func() {
		events := m.simulator.PendingEvents()
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}

		rsp = make([]eventRsp, 0, len(events))
		for _, evt := range events {
			rsp = append(rsp, eventRsp{
				ID:   evt.ID(),
				Name: evt.Name(),
				Kind: sim.EventKind(evt),
				Time: finiteOrNil(evt.Time()),
			})
		}
	})

	writeJSON(w, rsp)
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}

	return limit, nil
}

type processRsp struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	State     string   `json:"state"`
	StartTime *float64 `json:"start_time"`
	NextEvent *float64 `json:"next_event"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	var rsp []processRsp

	m.simulator.Inspect(func() {
		procs := m.simulator.Processes()

		rsp = make([]processRsp, 0, len(procs))
		for _, p := range procs {
			pr := processRsp{
				ID:        p.ID(),
				Name:      p.Name(),
				State:     p.State().String(),
				StartTime: finiteOrNil(p.StartTime()),
			}

			if evt := p.PendingEvent(); evt != nil {
				pr.NextEvent = finiteOrNil(evt.Time())
			}

			rsp = append(rsp, pr)
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.simulator.Inspect(func() {
		p := m.findProcess(name)
		if p == nil {
			http.Error(w, "Process not found", http.StatusNotFound)
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(newProcessView(p))
		serializer.SetMaxDepth(1)

		err := serializer.Serialize(w)
		dieOnErr(err)
	})
}

// processView is the part of a process that is safe to serialize while the
// process is suspended.
type processView struct {
	ID           string
	Name         string
	State        string
	Killed       bool
	StartTime    string
	EndTime      string
	PendingEvent string
	Args         []string
}

func newProcessView(p *sim.Process) *processView {
	v := &processView{
		ID:        p.ID(),
		Name:      p.Name(),
		State:     p.State().String(),
		Killed:    p.Killed(),
		StartTime: formatTime(p.StartTime()),
		EndTime:   formatTime(p.EndTime()),
	}

	if evt := p.PendingEvent(); evt != nil {
		v.PendingEvent = fmt.Sprint(evt)
	}

	for _, arg := range p.Args {
		v.Args = append(v.Args, fmt.Sprint(arg))
	}

	return v
}

func formatTime(t sim.VTimeInSec) string {
	return strconv.FormatFloat(float64(t), 'g', -1, 64)
}

func (m *Monitor) findProcess(name string) *sim.Process {
	for _, p := range m.simulator.Processes() {
		if p.Name() == name {
			return p
		}
	}

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	rsp := make([]ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		total, inProgress, finished := b.Snapshot()
		rsp = append(rsp, ProgressBar{
			ID:         b.ID,
			Name:       b.Name,
			StartTime:  b.StartTime,
			Total:      total,
			InProgress: inProgress,
			Finished:   finished,
		})
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	if s := r.URL.Query().Get("duration"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			http.Error(w, "invalid duration: "+err.Error(), http.StatusBadRequest)
			return
		}

		duration = d
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func finiteOrNil(t sim.VTimeInSec) *float64 {
	if math.IsInf(float64(t), 0) || math.IsNaN(float64(t)) {
		return nil
	}

	v := float64(t)

	return &v
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONWithStatus(w, http.StatusOK, v)
}

func writeJSONWithStatus(w http.ResponseWriter, status int, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		logrus.Panic(err)
	}
}
