package parking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type InstrumentedManager struct {
	*Manager
	telemetry *TelemetryProvider

	entryOperations   metric.Int64Counter
	exitOperations    metric.Int64Counter
	revenue           metric.Float64Counter
	billedHours       metric.Int64Histogram
	operationDuration metric.Float64Histogram
}

func NewInstrumentedManager(manager *Manager, telemetry *TelemetryProvider) (*InstrumentedManager, error) {
	meter := telemetry.Meter()

	entryOperations, err := meter.Int64Counter("parking_entries_total",
		metric.WithDescription("Total number of vehicle entry attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("parking_exits_total",
		metric.WithDescription("Total number of vehicle exit and cancel attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	revenue, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Fees charged for completed sessions"),
		metric.WithUnit("{currency}"))
	if err != nil {
		return nil, err
	}

	billedHours, err := meter.Int64Histogram("parking_billed_hours",
		metric.WithDescription("Billed hours per completed session"),
		metric.WithUnit("h"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("parking_operation_duration_seconds",
		metric.WithDescription("Duration of parking manager operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge("parking_spaces",
		metric.WithDescription("Parking spaces by floor and status"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			counts := make(map[[2]string]int64)
			for _, s := range manager.ListSpaces(SpaceFilter{}) {
				counts[[2]string{string(s.Floor), string(s.Status)}]++
			}
			for key, n := range counts {
				o.Observe(n, metric.WithAttributes(
					attribute.String("floor", key[0]),
					attribute.String("status", key[1]),
				))
			}
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return &InstrumentedManager{
		Manager:           manager,
		telemetry:         telemetry,
		entryOperations:   entryOperations,
		exitOperations:    exitOperations,
		revenue:           revenue,
		billedHours:       billedHours,
		operationDuration: operationDuration,
	}, nil
}

func errorStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsValidation(err):
		return "invalid"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (im *InstrumentedManager) RegisterEntry(ctx context.Context, req EntryRequest) (Session, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.register_entry",
		trace.WithAttributes(
			attribute.String("vehicle.license_plate", req.LicensePlate),
			attribute.String("space.id", req.SpaceID),
			attribute.String("space.code", req.SpaceCode),
			attribute.Bool("space.accessible_requested", req.RequiresAccessibleSpace),
		))
	defer span.End()

	start := time.Now()
	span.AddEvent("validating_entry")

	session, err := im.Manager.RegisterEntry(ctx, req)

	labels := []attribute.KeyValue{
		attribute.String("operation", "entry"),
		attribute.String("status", errorStatus(err)),
	}

	if err != nil {
		recordSpanError(span, err)
	} else {
		span.SetAttributes(
			attribute.String("session.id", session.ID),
			attribute.Int64("person.id", session.PersonID),
		)
		span.AddEvent("space_occupied", trace.WithAttributes(
			attribute.String("space.id", session.SpaceID),
		))
	}

	im.entryOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return session, err
}

func (im *InstrumentedManager) RegisterExit(ctx context.Context, sessionID string, exitTime *time.Time) (Session, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.register_exit",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	session, err := im.Manager.RegisterExit(ctx, sessionID, exitTime)
	im.recordClose(ctx, span, "exit", start, session, err)
	return session, err
}

func (im *InstrumentedManager) RegisterExitByPlate(ctx context.Context, plate string, exitTime *time.Time) (Session, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.register_exit_by_plate",
		trace.WithAttributes(attribute.String("vehicle.license_plate", plate)))
	defer span.End()

	start := time.Now()
	session, err := im.Manager.RegisterExitByPlate(ctx, plate, exitTime)
	im.recordClose(ctx, span, "exit", start, session, err)
	return session, err
}

func (im *InstrumentedManager) CancelSession(ctx context.Context, sessionID string) (Session, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.cancel_session",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	session, err := im.Manager.CancelSession(ctx, sessionID)
	im.recordClose(ctx, span, "cancel", start, session, err)
	return session, err
}

func (im *InstrumentedManager) recordClose(ctx context.Context, span trace.Span, operation string, start time.Time, session Session, err error) {
	labels := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("status", errorStatus(err)),
	}

	if err != nil {
		recordSpanError(span, err)
	} else {
		span.SetAttributes(
			attribute.String("vehicle.license_plate", session.LicensePlate),
			attribute.String("space.id", session.SpaceID),
			attribute.Int64("session.billed_hours", session.BilledHours),
			attribute.String("session.fee", session.Fee.String()),
		)
		span.AddEvent("space_released")
		if session.Status == SessionCompleted {
			im.revenue.Add(ctx, session.Fee.Float())
			im.billedHours.Record(ctx, session.BilledHours)
		}
	}

	im.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))
}

func (im *InstrumentedManager) ListSessions(ctx context.Context, status SessionStatus) []Session {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.list_sessions",
		trace.WithAttributes(attribute.String("filter.status", string(status))))
	defer span.End()

	start := time.Now()
	sessions := im.Manager.ListSessions(status)
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))

	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "list_sessions"),
		attribute.String("status", "success"),
	))
	return sessions
}

func (im *InstrumentedManager) ListSpaces(ctx context.Context, filter SpaceFilter) []Space {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.list_spaces",
		trace.WithAttributes(
			attribute.String("filter.floor", string(filter.Floor)),
			attribute.String("filter.status", string(filter.Status)),
		))
	defer span.End()

	start := time.Now()
	spaces := im.Manager.ListSpaces(filter)
	span.SetAttributes(attribute.Int("spaces.count", len(spaces)))

	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "list_spaces"),
		attribute.String("status", "success"),
	))
	return spaces
}

func (im *InstrumentedManager) SetMaintenance(ctx context.Context, id string, maintenance bool) (Space, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.set_maintenance",
		trace.WithAttributes(
			attribute.String("space.id", id),
			attribute.Bool("space.maintenance", maintenance),
		))
	defer span.End()

	start := time.Now()
	space, err := im.Manager.SetMaintenance(ctx, id, maintenance)
	im.finish(ctx, span, "set_maintenance", start, err)
	return space, err
}

func (im *InstrumentedManager) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		recordSpanError(span, err)
	}
	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", errorStatus(err)),
	))
}

func (im *InstrumentedManager) AddSpace(ctx context.Context, ns NewSpace) (Space, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.add_space",
		trace.WithAttributes(
			attribute.String("space.code", ns.Code),
			attribute.String("space.floor", string(ns.Floor)),
			attribute.Bool("space.accessible", ns.IsAccessible),
		))
	defer span.End()

	start := time.Now()
	space, err := im.Manager.AddSpace(ctx, ns)
	if err == nil {
		span.SetAttributes(attribute.String("space.id", space.ID))
	}
	im.finish(ctx, span, "add_space", start, err)
	return space, err
}

func (im *InstrumentedManager) RemoveSpace(ctx context.Context, id string) error {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.remove_space",
		trace.WithAttributes(attribute.String("space.id", id)))
	defer span.End()

	start := time.Now()
	err := im.Manager.RemoveSpace(ctx, id)
	im.finish(ctx, span, "remove_space", start, err)
	return err
}

func (im *InstrumentedManager) Provision(ctx context.Context, spaces []NewSpace) (int, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.provision",
		trace.WithAttributes(attribute.Int("spaces.requested", len(spaces))))
	defer span.End()

	start := time.Now()
	added, err := im.Manager.Provision(ctx, spaces)
	span.SetAttributes(attribute.Int("spaces.added", added))
	im.finish(ctx, span, "provision", start, err)
	return added, err
}

func (im *InstrumentedManager) Session(ctx context.Context, id string) (Session, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.get_session",
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	start := time.Now()
	session, err := im.Manager.Session(id)
	im.finish(ctx, span, "get_session", start, err)
	return session, err
}

func (im *InstrumentedManager) SpaceByCode(ctx context.Context, code string) (Space, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.get_space_by_code",
		trace.WithAttributes(attribute.String("space.code", code)))
	defer span.End()

	start := time.Now()
	space, err := im.Manager.SpaceByCode(code)
	if err == nil {
		span.SetAttributes(attribute.String("space.id", space.ID))
	}
	im.finish(ctx, span, "get_space_by_code", start, err)
	return space, err
}
