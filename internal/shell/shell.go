// Package shell is a line-oriented operator console for the parking manager.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parking-manager/internal/parking"
	"parking-manager/internal/report"
)

const usage = `Commands:
  entry <plate> <dni> <space_code> [accessible]
  exit <plate>
  cancel <session_id>
  sessions [active|completed|cancelled]
  spaces [floor]
  maintenance <space_code> on|off
  report
  help`

type InstrumentedShell struct {
	manager   *parking.InstrumentedManager
	directory parking.UserDirectory
	telemetry *parking.TelemetryProvider
	scanner   *bufio.Scanner
	out       io.Writer
}

func NewInstrumentedShell(manager *parking.InstrumentedManager, directory parking.UserDirectory, telemetry *parking.TelemetryProvider, in io.Reader, out io.Writer) *InstrumentedShell {
	return &InstrumentedShell{
		manager:   manager,
		directory: directory,
		telemetry: telemetry,
		scanner:   bufio.NewScanner(in),
		out:       out,
	}
}

func (s *InstrumentedShell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil && s.scanner.Scan() {
		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

func (s *InstrumentedShell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *InstrumentedShell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	command := parts[0]
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "entry":
		s.handleEntry(ctx, parts)
	case "exit":
		s.handleExit(ctx, parts)
	case "cancel":
		s.handleCancel(ctx, parts)
	case "sessions":
		s.handleSessions(ctx, parts)
	case "spaces":
		s.handleSpaces(ctx, parts)
	case "maintenance":
		s.handleMaintenance(ctx, parts)
	case "report":
		s.handleReport(ctx)
	case "help":
		s.printf("%s\n", usage)
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command")
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *InstrumentedShell) handleEntry(ctx context.Context, parts []string) {
	if len(parts) != 4 && len(parts) != 5 {
		s.printf("Usage: entry <plate> <dni> <space_code> [accessible]\n")
		return
	}

	req := parking.EntryRequest{
		LicensePlate: parts[1],
		DNI:          parts[2],
		SpaceCode:    parts[3],
	}
	if len(parts) == 5 {
		if parts[4] != "accessible" {
			s.printf("Usage: entry <plate> <dni> <space_code> [accessible]\n")
			return
		}
		req.RequiresAccessibleSpace = true
	}

	session, err := s.manager.RegisterEntry(ctx, req)
	if err != nil {
		s.printf("Entry rejected: %s\n", err)
		return
	}

	s.printf("Entry registered: %s in %s (session %s)\n", session.LicensePlate, strings.ToUpper(req.SpaceCode), session.ID)
}

func (s *InstrumentedShell) handleExit(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: exit <plate>\n")
		return
	}

	session, err := s.manager.RegisterExitByPlate(ctx, parts[1], nil)
	if err != nil {
		s.printf("Exit rejected: %s\n", err)
		return
	}

	s.printf("Exit registered: %s, %d h, fee %s\n", session.LicensePlate, session.BilledHours, session.Fee)
}

func (s *InstrumentedShell) handleCancel(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: cancel <session_id>\n")
		return
	}

	session, err := s.manager.CancelSession(ctx, parts[1])
	if err != nil {
		s.printf("Cancel rejected: %s\n", err)
		return
	}

	s.printf("Session %s cancelled\n", session.ID)
}

func (s *InstrumentedShell) handleSessions(ctx context.Context, parts []string) {
	var status parking.SessionStatus
	if len(parts) > 1 {
		status = parking.SessionStatus(strings.ToLower(parts[1]))
		if !status.Valid() {
			s.printf("Invalid status: %s\n", parts[1])
			return
		}
	}

	sessions := s.manager.ListSessions(ctx, status)
	if len(sessions) == 0 {
		s.printf("No sessions\n")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Plate\tPerson\tSpace\tEntry\tStatus\tFee")
	for _, session := range sessions {
		person := "-"
		if p, err := s.directory.FindByID(ctx, session.PersonID); err == nil {
			person = p.Name
		}
		code := "-"
		if space, err := s.manager.Space(session.SpaceID); err == nil {
			code = space.Code
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			session.LicensePlate, person, code,
			session.EntryTime.Format("2006-01-02 15:04"), session.Status, session.Fee)
	}
	w.Flush()
}

func (s *InstrumentedShell) handleSpaces(ctx context.Context, parts []string) {
	var filter parking.SpaceFilter
	if len(parts) > 1 {
		floor, err := parking.ParseFloor(parts[1])
		if err != nil {
			s.printf("Invalid floor: %s\n", parts[1])
			return
		}
		filter.Floor = floor
	}

	spaces := s.manager.ListSpaces(ctx, filter)
	w := tabwriter.NewWriter(s.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Code\tFloor\tAccessible\tStatus")
	for _, space := range spaces {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", space.Code, space.Floor, space.IsAccessible, space.Status)
	}
	w.Flush()
}

func (s *InstrumentedShell) handleMaintenance(ctx context.Context, parts []string) {
	if len(parts) != 3 || (parts[2] != "on" && parts[2] != "off") {
		s.printf("Usage: maintenance <space_code> on|off\n")
		return
	}

	space, err := s.manager.SpaceByCode(ctx, parts[1])
	if err != nil {
		s.printf("Maintenance rejected: %s\n", err)
		return
	}

	space, err = s.manager.SetMaintenance(ctx, space.ID, parts[2] == "on")
	if err != nil {
		s.printf("Maintenance rejected: %s\n", err)
		return
	}

	s.printf("Space %s is %s\n", space.Code, space.Status)
}

func (s *InstrumentedShell) handleReport(ctx context.Context) {
	spaces := s.manager.ListSpaces(ctx, parking.SpaceFilter{})
	occupancy := report.Occupancy(spaces)
	stats := report.Build(s.manager.ListSessions(ctx, ""), len(spaces), report.Range{})

	s.printf("Spaces: %d total, %d available, %d occupied, %d maintenance\n",
		occupancy.Total, occupancy.Available, occupancy.Occupied, occupancy.Maintenance)
	for _, f := range occupancy.Floors {
		s.printf("  %s: %d/%d occupied\n", f.Floor, f.Occupied, f.Total)
	}
	s.printf("Closed sessions: %d, revenue %s, average stay %d min\n",
		stats.Summary.TotalSessions, stats.Summary.Revenue, stats.Summary.AvgDurationMinutes)
	if stats.Summary.PeakDay != "" {
		s.printf("Peak day %s, peak hour %s\n", stats.Summary.PeakDay, stats.Summary.PeakHour)
	}
}
