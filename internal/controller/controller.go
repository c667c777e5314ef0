package controller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clambin/go-common/set"
	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/internal/controller/notifier"
	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/internal/store"
	"github.com/clambin/zoned/pkg/scheduler"
)

// DeviceSetter publishes a set command for a device. ack is called with the
// delivery result.
type DeviceSetter interface {
	Set(device string, fields map[string]any, ack func(error)) error
}

// commandAttempts is the number of snapshots a commanded thermostat mode may
// go unconfirmed before the command is assumed lost and reissued.
const commandAttempts = 3

// A Controller runs the control loop for one thermostat and its rooms. It
// receives device snapshots from a Poller, feeds them through the pause
// monitor, the occupancy trackers and the per-room evaluations, and commands
// the thermostat and vents. All state is owned by the Run goroutine; other
// goroutines interact through Pause, Resume, Recalculate, Set and Status.
type Controller struct {
	poller    poller.Poller
	devices   DeviceSetter
	store     *store.Store
	notifiers notifier.Notifiers
	metrics   *Metrics
	logger    *slog.Logger
	cfg       configuration.ControllerConfiguration

	queue     *scheduler.Queue[timerKey]
	pause     *pauseMonitor
	occupancy map[string]*occupancyTracker
	engine    *engine
	vents     *ventSelector

	ecoRooms      set.Set[string]
	trackingRooms set.Set[string]

	ops     chan opRequest
	results chan commandResult
	status  atomic.Pointer[Status]

	// state below is only touched by the Run goroutine
	update   *poller.Update
	settings runtimeSettings
	away     bool

	lastMode   poller.SystemMode // last mode the thermostat reported
	haveMode   bool
	lastNonOff poller.SystemMode
	userOff    bool // the user turned the thermostat off; gates the engine while respect-user-off is set

	expectMode        poller.SystemMode
	expectOutstanding bool
	expectAttempts    int

	sentMode poller.SystemMode
	sentHeat float64
	sentCool float64
	haveSent bool

	warned map[string]bool
}

type opKind int

const (
	opPause opKind = iota
	opResume
	opRecalculate
	opSet
)

type opRequest struct {
	kind  opKind
	name  string
	value string
	reply chan error
}

type commandResult struct {
	device string
	err    error
}

func New(cfg configuration.ControllerConfiguration, p poller.Poller, devices DeviceSetter, db *store.Store, bot notifier.SlackSender, metrics *Metrics, logger *slog.Logger) *Controller {
	queue := scheduler.NewQueue[timerKey]()
	c := Controller{
		poller:        p,
		devices:       devices,
		store:         db,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		queue:         queue,
		pause:         newPauseMonitor(cfg.Name, cfg.OpenTimeout, cfg.CloseTimeout, queue),
		occupancy:     make(map[string]*occupancyTracker, len(cfg.Rooms)),
		engine:        newEngine(cfg.Cycle),
		vents:         newVentSelector(cfg, queue),
		ecoRooms:      set.New(cfg.Eco.Rooms...),
		trackingRooms: set.New(cfg.Tracking.Rooms...),
		ops:           make(chan opRequest),
		results:       make(chan commandResult, 16),
		settings:      settingsFromConfiguration(cfg),
		warned:        make(map[string]bool),
		notifiers:     notifier.Notifiers{&notifier.SLogNotifier{Logger: logger}},
	}
	for _, room := range cfg.Rooms {
		c.occupancy[room.Name] = newOccupancyTracker(room.Name, cfg.Occupancy, queue)
	}
	if bot != nil {
		c.notifiers = append(c.notifiers, &notifier.SlackNotifier{SlackSender: bot, Logger: logger})
	}
	return &c
}

// Name returns the controller's configured name.
func (c *Controller) Name() string {
	return c.cfg.Name
}

// Status returns the most recently published status, or nil when no
// evaluation has run yet.
func (c *Controller) Status() *Status {
	return c.status.Load()
}

func (c *Controller) Run(ctx context.Context) error {
	c.logger.Debug("started")
	defer c.logger.Debug("stopped")

	c.restore(ctx)

	ch := c.poller.Subscribe()
	defer c.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.processUpdate(ctx, update)
		case key := <-c.queue.Fired():
			c.processTimer(ctx, key)
		case op := <-c.ops:
			c.processOp(ctx, op)
		case result := <-c.results:
			c.logger.Error("device command failed", slog.String("device", result.device), slog.Any("err", result.err))
		}
	}
}

// restore seeds the controller from state saved before the last shutdown.
func (c *Controller) restore(ctx context.Context) {
	if state, ok, err := c.store.PauseState(ctx, c.cfg.Name); err != nil {
		c.logger.Error("failed to restore pause state", slog.Any("err", err))
	} else if ok {
		c.pause.restore(state.Paused, poller.SystemMode(state.PreviousMode), state.TriggeredBy)
		if state.Paused {
			c.logger.Info("restored paused state", slog.String("triggeredBy", state.TriggeredBy))
		}
	}
	if states, err := c.store.RoomStates(ctx, c.cfg.Name); err != nil {
		c.logger.Error("failed to restore room states", slog.Any("err", err))
	} else {
		for _, state := range states {
			if tracker, ok := c.occupancy[state.Room]; ok {
				tracker.restore(state.Active, state.OccupiedSince, state.ActiveSince)
			}
		}
	}
	if state, ok, err := c.store.CycleState(ctx, c.cfg.Name); err != nil {
		c.logger.Error("failed to restore cycle state", slog.Any("err", err))
	} else if ok {
		c.engine.restore(state.Running, state.LastOn, state.LastOff)
		c.userOff = state.UserOff
	}
	settings, err := c.store.Settings(ctx, c.cfg.Name)
	if err != nil {
		c.logger.Error("failed to restore settings", slog.Any("err", err))
		return
	}
	for name, value := range settings {
		if err = c.settings.apply(name, value); err != nil {
			c.logger.Warn("ignoring saved setting", slog.String("name", name), slog.Any("err", err))
		}
	}
}

func (c *Controller) processUpdate(ctx context.Context, update poller.Update) {
	c.update = &update
	now := update.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var mode poller.SystemMode
	var haveMode bool
	if device, ok := update.Device(c.cfg.Thermostat); ok {
		mode, haveMode = device.Mode()
	}
	if haveMode {
		delete(c.warned, "device/"+c.cfg.Thermostat)
		c.observeMode(ctx, mode, now)
	} else {
		c.warnOnce("device/"+c.cfg.Thermostat, "thermostat not reporting", slog.String("device", c.cfg.Thermostat))
	}

	if c.cfg.Away.Presence != "" {
		if present, ok := update.Present(c.cfg.Away.Presence); ok {
			delete(c.warned, "device/"+c.cfg.Away.Presence)
			if away := !present; away != c.away {
				c.away = away
				c.logger.Info("away state changed", slog.Bool("away", away))
			}
		} else {
			c.warnOnce("device/"+c.cfg.Away.Presence, "presence device not reporting", slog.String("device", c.cfg.Away.Presence))
		}
	}

	open := make([]string, 0, len(c.cfg.ContactSensors))
	for _, sensor := range c.cfg.ContactSensors {
		isOpen, ok := update.ContactOpen(sensor.ID)
		if !ok {
			// a sensor that doesn't report is treated as closed
			c.warnOnce("sensor/"+sensor.ID, "contact sensor not reporting", slog.String("sensor", sensor.ID))
			continue
		}
		delete(c.warned, "sensor/"+sensor.ID)
		if isOpen {
			open = append(open, sensor.ID)
		}
	}
	c.handlePause(ctx, c.pause.observe(ctx, open, now))

	for _, room := range c.cfg.Rooms {
		if len(room.OccupancySensors) == 0 {
			continue
		}
		var present bool
		for _, sensor := range room.OccupancySensors {
			value, ok := update.Present(sensor)
			if !ok {
				c.warnOnce("sensor/"+sensor, "occupancy sensor not reporting", slog.String("room", room.Name), slog.String("sensor", sensor))
				continue
			}
			delete(c.warned, "sensor/"+sensor)
			present = present || value
		}
		tracker := c.occupancy[room.Name]
		if tracker.setPresence(ctx, present, now) {
			c.logger.Debug("room presence changed", slog.String("room", room.Name), slog.Bool("occupied", tracker.occupied), slog.Bool("active", tracker.active))
			c.saveRoom(ctx, room.Name)
		}
	}

	for _, room := range c.cfg.Rooms {
		for _, vent := range room.Vents {
			device, ok := update.Device(vent.ID)
			if !ok {
				continue
			}
			if open, ok := device.VentOpen(); ok {
				c.vents.noteReported(vent.ID, open)
			}
			c.vents.noteOnline(vent.ID, device.Online())
		}
	}

	c.evaluate(ctx, now)
}

// observeMode reconciles the thermostat's reported mode with any command
// still in flight. A report that matches neither the expected mode nor the
// previous one is an external change and wins immediately.
func (c *Controller) observeMode(ctx context.Context, mode poller.SystemMode, now time.Time) {
	if c.expectOutstanding {
		switch {
		case mode == c.expectMode:
			c.expectOutstanding = false
			c.haveMode = true
			c.lastMode = mode
			if mode != poller.ModeOff {
				c.lastNonOff = mode
			}
			c.pause.noteMode(mode)
			return
		case c.haveMode && mode == c.lastMode:
			// our command has not been applied yet
			c.expectAttempts++
			if c.expectAttempts >= commandAttempts {
				c.expectOutstanding = false
				c.haveSent = false
				c.logger.Warn("thermostat did not apply the commanded mode",
					slog.String("commanded", string(c.expectMode)), slog.String("reported", string(mode)))
			}
			return
		default:
			c.expectOutstanding = false
		}
	}
	if c.haveMode && mode == c.lastMode {
		return
	}
	c.externalMode(ctx, mode, now)
}

// externalMode handles a thermostat mode we didn't command: record it, latch
// or release the user-off state, sync the engine and let the pause monitor
// decide whether the change lifts a pause.
func (c *Controller) externalMode(ctx context.Context, mode poller.SystemMode, now time.Time) {
	if c.haveMode {
		c.logger.Info("thermostat mode changed externally", slog.String("mode", string(mode)))
	}
	c.haveMode = true
	c.lastMode = mode
	// what we last sent no longer reflects the thermostat
	c.haveSent = false
	if mode == poller.ModeOff && c.pause.suppressed() {
		// while suppressed, off is the pause's own doing
		return
	}
	if mode != poller.ModeOff {
		c.lastNonOff = mode
		if c.userOff {
			c.userOff = false
			c.logger.Info("thermostat re-engaged by the user")
		}
	} else if c.engine.running {
		c.userOff = true
		c.logger.Info("thermostat turned off by the user")
	}
	if c.engine.noteExternal(mode != poller.ModeOff, now) {
		c.saveCycle(ctx)
	}
	c.handlePause(ctx, c.pause.noteMode(mode))
}

// handlePause executes what a pause transition requires: forcing the
// thermostat off, restoring its mode on resume, notifying and persisting.
func (c *Controller) handlePause(ctx context.Context, outcome pauseOutcome) {
	if !outcome.changed {
		return
	}
	c.logger.Info("pause state changed", slog.String("state", c.pause.state.String()))
	if outcome.turnedOff {
		c.commandMode(poller.ModeOff)
		c.metrics.countPause(c.cfg.Name, outcome.triggeredBy)
		reason := outcome.triggeredBy + " open too long"
		if outcome.triggeredBy == "manual" {
			reason = "paused manually"
		}
		c.notifiers.Notify("climate control paused", reason)
	}
	if outcome.resumed {
		restore := outcome.restoreMode
		if restore == "" {
			restore = poller.ModeHeatCool
		}
		if restore == poller.ModeOff {
			c.notifiers.Notify("climate control resumed", "thermostat left off")
		} else {
			if !c.haveMode || c.lastMode != restore {
				c.commandMode(restore)
			}
			c.notifiers.Notify("climate control resumed", "restored "+string(restore))
		}
	}
	c.savePause(ctx)
}

func (c *Controller) processTimer(ctx context.Context, key timerKey) {
	now := time.Now()
	c.logger.Debug("timer fired", slog.String("timer", key.String()))
	switch key.kind {
	case timerPauseOpen:
		c.handlePause(ctx, c.pause.openElapsed(key.id))
	case timerPauseClose:
		c.handlePause(ctx, c.pause.closeElapsed())
	case timerOccupancyMinimum:
		if tracker, ok := c.occupancy[key.id]; ok && tracker.minimumElapsed(now) {
			c.logger.Info("room became active", slog.String("room", key.id))
			c.saveRoom(ctx, key.id)
		}
	case timerOccupancyGrace:
		if tracker, ok := c.occupancy[key.id]; ok && tracker.graceElapsed() {
			c.logger.Info("room became inactive", slog.String("room", key.id))
			c.saveRoom(ctx, key.id)
		}
	case timerVentOpenDelay:
		c.vents.delayElapsed(key.id)
	case timerVentConfirm:
		retry, gaveUp := c.vents.confirmElapsed(ctx, key.id)
		if gaveUp {
			c.logger.Warn("vent not responding", slog.String("vent", key.id))
			c.notifiers.Notify("vent unresponsive", key.id+" did not confirm its last command")
		}
		if retry != nil {
			c.sendVent(*retry)
		}
	}
	c.evaluate(ctx, now)
}

func (c *Controller) processOp(ctx context.Context, op opRequest) {
	now := time.Now()
	var err error
	switch op.kind {
	case opPause:
		c.handlePause(ctx, c.pause.forcePause())
	case opResume:
		c.handlePause(ctx, c.pause.forceResume())
	case opRecalculate:
		c.poller.Refresh()
	case opSet:
		err = c.applySetting(ctx, op.name, op.value)
	}
	c.evaluate(ctx, now)
	op.reply <- err
}

func (c *Controller) applySetting(ctx context.Context, name, value string) error {
	if err := c.settings.apply(name, value); err != nil {
		return err
	}
	if err := c.store.SaveSetting(ctx, c.cfg.Name, name, value); err != nil {
		c.logger.Error("failed to save setting", slog.Any("err", err))
	}
	c.logger.Info("setting changed", slog.String("name", name), slog.String("value", value))
	return nil
}

// evaluate runs one full decision cycle over the current snapshot. While the
// thermostat is suppressed by a pause, the engine and vents are left alone;
// only the status is updated.
func (c *Controller) evaluate(ctx context.Context, now time.Time) {
	if c.update == nil {
		return
	}
	mode := c.controlMode()
	evaluations := c.buildEvaluations(mode)
	if !c.pause.suppressed() {
		c.applyEngine(ctx, mode, evaluations, now)
		for _, command := range c.vents.evaluate(ctx, evaluations, now) {
			c.sendVent(command)
		}
	}
	c.publishStatus(mode, evaluations, now)
}

// controlMode decides which mode the controller operates in: the mode the
// thermostat reports, the last known non-off mode, or, failing both, a mode
// inferred from the house's average temperature.
func (c *Controller) controlMode() poller.SystemMode {
	if c.haveMode && c.lastMode != poller.ModeOff {
		return c.lastMode
	}
	if c.lastNonOff != "" {
		return c.lastNonOff
	}
	var sum float64
	var count int
	heat := configuration.MinTarget
	cool := configuration.MaxTarget
	for _, room := range c.cfg.Rooms {
		heat = max(heat, room.HeatTarget)
		cool = min(cool, room.CoolTarget)
		for _, sensor := range room.TemperatureSensors {
			if value, ok := c.update.Temperature(sensor); ok {
				sum += value
				count++
			}
		}
	}
	if count == 0 {
		return poller.ModeHeatCool
	}
	return inferMode(sum/float64(count), heat, cool)
}

func (c *Controller) buildEvaluations(mode poller.SystemMode) []roomEvaluation {
	eco := EcoPolicy{Enabled: c.settings.ecoEnabled, CriticalTracking: c.settings.ecoTracking, Rooms: c.ecoRooms}
	if c.away && c.settings.ecoAwayBehavior == configuration.AwayDisableEco {
		eco.Enabled = false
	}
	tracking := TrackingPolicy{Enabled: c.settings.trackingEnabled, Rooms: c.trackingRooms}

	evaluations := make([]roomEvaluation, 0, len(c.cfg.Rooms))
	for _, room := range c.cfg.Rooms {
		tracker := c.occupancy[room.Name]
		e := roomEvaluation{
			room:     room.Name,
			occupied: tracker.occupied,
			active:   tracker.active,
			distance: -1,
		}
		readings := make([]float64, 0, len(room.TemperatureSensors))
		for _, sensor := range room.TemperatureSensors {
			if value, ok := c.update.Temperature(sensor); ok {
				delete(c.warned, "sensor/"+sensor)
				readings = append(readings, value)
			} else {
				e.unknownSensors = append(e.unknownSensors, sensor)
				c.warnOnce("sensor/"+sensor, "temperature sensor not reporting", slog.String("room", room.Name), slog.String("sensor", sensor))
			}
		}
		e.readings = len(readings)

		input := classifierInput{
			Mode:             mode,
			Readings:         readings,
			HeatTarget:       room.HeatTarget,
			CoolTarget:       room.CoolTarget,
			Deadband:         c.cfg.Temperatures.Deadband,
			HeatingThreshold: c.cfg.Temperatures.UnoccupiedHeatingThreshold,
			CoolingThreshold: c.cfg.Temperatures.UnoccupiedCoolingThreshold,
			Active:           tracker.active,
		}
		verdict := classify(input)
		if verdict.Unknown {
			// no readings at all: the room sits this cycle out
			e.rule = "degraded"
			evaluations = append(evaluations, e)
			continue
		}
		e.temperature = verdict.Temperature
		e.distance = verdict.Distance
		e.satiated = verdict.Satiated
		e.critical = verdict.Critical
		if c.awayTargets() {
			// away targets relax the satiation comparison only. criticality
			// keeps the room's normal targets.
			input.HeatTarget = room.HeatTarget - c.cfg.Away.HeatingOffset
			input.CoolTarget = room.CoolTarget + c.cfg.Away.CoolingOffset
			e.satiated = classify(input).Satiated
		}

		outcome := include(inclusionInput{
			Room:       room.Name,
			Active:     tracker.active,
			Critical:   verdict.Critical,
			ForceTrack: room.ForceTrackWhenCritical,
			Eco:        eco,
			Tracking:   tracking,
		})
		e.included = outcome.Included
		e.classification = outcome.Classification
		e.rule = outcome.Rule
		evaluations = append(evaluations, e)
	}
	return evaluations
}

func (c *Controller) awayTargets() bool {
	return c.away && c.settings.ecoEnabled && c.settings.ecoAwayBehavior == configuration.AwayUseEcoAwayTargets
}

// applyEngine moves the thermostat toward what the evaluations call for.
func (c *Controller) applyEngine(ctx context.Context, mode poller.SystemMode, evaluations []roomEvaluation, now time.Time) {
	want := wantRun(evaluations)
	if want && c.settings.respectUserOff && c.userOff {
		c.logger.Debug("holding: the thermostat was turned off by the user")
		want = false
	}
	changed, blocked := c.engine.apply(want, now)
	if blocked {
		c.logger.Debug("cycle protection deferred a transition", slog.Bool("want", want))
	}
	if changed {
		c.haveSent = false
		c.logger.Info("engine state changed", slog.Bool("running", c.engine.running))
		c.saveCycle(ctx)
	}
	if c.engine.running {
		if want {
			c.syncRunning(mode, evaluations)
		}
	} else if changed {
		c.commandMode(poller.ModeOff)
	}
}

// syncRunning keeps the thermostat's mode and setpoints aligned with the
// current evaluation while the engine runs. Unchanged values are not resent.
func (c *Controller) syncRunning(mode poller.SystemMode, evaluations []roomEvaluation) {
	heat, cool := c.setpointTargets(evaluations)
	if c.haveSent && c.sentMode == mode && c.sentHeat == heat && c.sentCool == cool {
		return
	}
	fields := map[string]any{"system_mode": string(mode)}
	if mode.Heats() {
		fields["occupied_heating_setpoint"] = heat
	}
	if mode.Cools() {
		fields["occupied_cooling_setpoint"] = cool
	}
	c.sendThermostat(fields)
	c.haveSent = true
	c.sentMode, c.sentHeat, c.sentCool = mode, heat, cool
	c.expect(mode)
}

// setpointTargets derives the setpoints to command: the most demanding
// included room wins, shifted by the away offsets when nobody is home and
// widened by the boost offsets.
func (c *Controller) setpointTargets(evaluations []roomEvaluation) (float64, float64) {
	heat := configuration.MinTarget
	cool := configuration.MaxTarget
	for _, e := range evaluations {
		if !e.included {
			continue
		}
		room, ok := c.cfg.Room(e.room)
		if !ok {
			continue
		}
		heat = max(heat, room.HeatTarget)
		cool = min(cool, room.CoolTarget)
	}
	if c.away {
		heat -= c.cfg.Away.HeatingOffset
		cool += c.cfg.Away.CoolingOffset
	}
	heat += c.cfg.Boost.HeatingOffset
	cool -= c.cfg.Boost.CoolingOffset
	heat = min(max(heat, configuration.MinTarget), configuration.MaxTarget)
	cool = min(max(cool, configuration.MinTarget), configuration.MaxTarget)
	// the heating setpoint never exceeds the cooling setpoint
	if heat > cool {
		heat = cool
	}
	return heat, cool
}

func (c *Controller) publishStatus(mode poller.SystemMode, evaluations []roomEvaluation, now time.Time) {
	status := Status{
		Updated:     now,
		Settings:    c.settings.snapshot(),
		Name:        c.cfg.Name,
		PauseState:  c.pause.state.String(),
		TriggeredBy: c.pause.triggeredBy,
		Mode:        string(mode),
		OpenSensors: c.pause.openSensors(),
		Rooms:       make([]RoomStatus, 0, len(evaluations)),
		Vents:       c.vents.statuses(),
		Paused:      c.pause.suppressed(),
		Running:     c.engine.running,
		Away:        c.away,
	}
	for _, e := range evaluations {
		tracker := c.occupancy[e.room]
		status.Rooms = append(status.Rooms, RoomStatus{
			OccupiedSince:  tracker.occupiedSince,
			ActiveSince:    tracker.activeSince,
			Name:           e.room,
			Classification: e.classification.String(),
			Rule:           e.rule,
			Temperature:    e.temperature,
			Occupied:       e.occupied,
			Active:         e.active,
			Satiated:       e.satiated,
			Critical:       e.critical,
			Included:       e.included,
		})
	}
	status.Summary = status.summary()
	c.status.Store(&status)
}

// expect records that a mode command is in flight, so the next snapshots can
// tell our own change from an external one.
func (c *Controller) expect(mode poller.SystemMode) {
	c.expectMode = mode
	c.expectOutstanding = true
	c.expectAttempts = 0
}

func (c *Controller) commandMode(mode poller.SystemMode) {
	c.sendThermostat(map[string]any{"system_mode": string(mode)})
	c.haveSent = false
	c.expect(mode)
}

func (c *Controller) sendThermostat(fields map[string]any) {
	c.logger.Debug("commanding thermostat", slog.Any("fields", fields))
	c.metrics.countCommand(c.cfg.Name, c.cfg.Thermostat)
	if err := c.devices.Set(c.cfg.Thermostat, fields, c.ack(c.cfg.Thermostat)); err != nil {
		c.logger.Error("failed to command thermostat", slog.Any("err", err))
	}
}

func (c *Controller) sendVent(command ventCommand) {
	state := "OPEN"
	if !command.open {
		state = "CLOSE"
	}
	c.logger.Debug("commanding vent", slog.String("vent", command.vent), slog.String("state", state))
	c.metrics.countCommand(c.cfg.Name, command.vent)
	if err := c.devices.Set(command.vent, map[string]any{"state": state}, c.ack(command.vent)); err != nil {
		c.logger.Error("failed to command vent", slog.String("vent", command.vent), slog.Any("err", err))
	}
}

// ack reports a failed delivery back to the Run loop. It runs on the MQTT
// client's goroutine and must not block.
func (c *Controller) ack(device string) func(error) {
	return func(err error) {
		if err == nil {
			return
		}
		select {
		case c.results <- commandResult{device: device, err: err}:
		default:
		}
	}
}

func (c *Controller) savePause(ctx context.Context) {
	state := store.PauseState{
		Paused:       c.pause.suppressed(),
		PreviousMode: string(c.pause.previousMode),
		TriggeredBy:  c.pause.triggeredBy,
	}
	if err := c.store.SavePauseState(ctx, c.cfg.Name, state); err != nil {
		c.logger.Error("failed to save pause state", slog.Any("err", err))
	}
}

func (c *Controller) saveRoom(ctx context.Context, room string) {
	tracker := c.occupancy[room]
	state := store.RoomState{
		Room:          room,
		Active:        tracker.active,
		OccupiedSince: tracker.occupiedSince,
		ActiveSince:   tracker.activeSince,
	}
	if err := c.store.SaveRoomState(ctx, c.cfg.Name, state); err != nil {
		c.logger.Error("failed to save room state", slog.String("room", room), slog.Any("err", err))
	}
}

func (c *Controller) saveCycle(ctx context.Context) {
	state := store.CycleState{
		Running: c.engine.running,
		UserOff: c.userOff,
		LastOn:  c.engine.lastOn,
		LastOff: c.engine.lastOff,
	}
	if err := c.store.SaveCycleState(ctx, c.cfg.Name, state); err != nil {
		c.logger.Error("failed to save cycle state", slog.Any("err", err))
	}
}

func (c *Controller) warnOnce(key, msg string, args ...any) {
	if c.warned[key] {
		return
	}
	c.warned[key] = true
	c.logger.Warn(msg, args...)
}

// Pause pauses climate control until Resume is called or the contact
// sensors open and close again.
func (c *Controller) Pause(ctx context.Context) error {
	return c.do(ctx, opRequest{kind: opPause})
}

// Resume lifts a pause and restores the thermostat.
func (c *Controller) Resume(ctx context.Context) error {
	return c.do(ctx, opRequest{kind: opResume})
}

// Recalculate forces a fresh snapshot and a full evaluation cycle.
func (c *Controller) Recalculate(ctx context.Context) error {
	return c.do(ctx, opRequest{kind: opRecalculate})
}

// Set changes a runtime setting.
func (c *Controller) Set(ctx context.Context, name, value string) error {
	return c.do(ctx, opRequest{kind: opSet, name: name, value: value})
}

func (c *Controller) do(ctx context.Context, op opRequest) error {
	op.reply = make(chan error, 1)
	select {
	case c.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-op.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
