package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ChuLiYu/plantrack/internal/analytics"
	"github.com/ChuLiYu/plantrack/internal/dashboard"
	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

const demoSnapshot = "data/demo-plan.json"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/demo/main.go <seed|show>")
		os.Exit(1)
	}
	mode := os.Args[1]

	svc := dashboard.NewService(dashboard.Config{
		Location:         time.Local,
		SnapshotPath:     demoSnapshot,
		KeepBackups:      2,
		MaintenanceLabel: "Scheduled Maintenance",
	})
	if err := svc.Open(); err != nil {
		log.Fatalf("Failed to open plan: %v", err)
	}

	now := time.Now()

	switch mode {
	case "seed":
		plan, err := svc.Replace(samplePlan(now), "demo")
		if err != nil {
			log.Fatalf("Failed to seed plan: %v", err)
		}
		fmt.Printf("✓ Seeded %d jobs (revision %s)\n", plan.Len(), plan.Revision())

		if _, err := svc.AddMaintenance(now, 4); err != nil {
			log.Fatalf("Failed to schedule maintenance: %v", err)
		}
		fmt.Printf("✓ Scheduled today's maintenance on machine 4\n")
		fmt.Printf("💡 Run 'go run cmd/demo/main.go show' to read it back from %s\n\n", demoSnapshot)
	case "show":
		if svc.Plan().Len() == 0 {
			fmt.Printf("⚠️  No plan stored at %s, run 'seed' first\n", demoSnapshot)
			return
		}
		fmt.Printf("✓ Restored %d jobs from %s\n\n", svc.Plan().Len(), demoSnapshot)
	default:
		fmt.Printf("Unknown mode %q\n", mode)
		os.Exit(1)
	}

	printView(svc.View(now))
}

// samplePlan spreads a few jobs around now so every state shows up.
func samplePlan(now time.Time) []types.ProductionJob {
	day := datetime.StartOfDay(now)
	at := func(days, hour int) types.RawCell {
		return types.TextCell(datetime.FormatDayFirstShort(day.AddDate(0, 0, days).Add(time.Duration(hour) * time.Hour)))
	}

	job := func(machine types.MachineID, seq, customer, partNo, partName string, start, end, due types.RawCell, downtime string) types.ProductionJob {
		return types.ProductionJob{
			MachineID:      machine,
			SequenceNumber: seq,
			StartAt:        start,
			EndAt:          end,
			DueAt:          due,
			Customer:       customer,
			PartNo:         partNo,
			PartName:       partName,
			TotalQuantity:  "5000",
			RunHours:       "8",
			Downtime:       downtime,
		}
	}

	return []types.ProductionJob{
		job(1, "1", "Acme", "AC-100", "Bumper clip", at(-1, 6), at(0, 14), at(1, 0), "00:45:00"),
		job(1, "2", "Acme", "AC-101", "Grille", at(0, 18), at(2, 6), at(2, 0), "00:00:00"),
		job(2, "1", "Globex", "GX-7", "Lid", at(0, 8), at(0, 16), at(3, 0), "01:30:00"),
		job(3, "1", "Initech", "IN-2", "Housing", at(-3, 8), at(-3, 20), at(-2, 0), "00:00:00"),
		job(3, "2", "Initech", "IN-3", "Cover", at(-2, 2), at(-1, 10), at(-2, 0), "02:00:00"),
		job(5, "1", "Umbrella", "UM-9", "Cap", at(1, 8), at(1, 12), at(4, 0), "00:00:00"),
		job(6, "1", "Hooli", "HO-1", "Frame", types.TextCell(""), types.TextCell("TBD"), at(5, 0), ""),
	}
}

func printView(view dashboard.View) {
	fmt.Printf("📊 Plan at %s (revision %s)\n", datetime.FormatDayFirst(view.GeneratedAt), view.Revision)
	fmt.Printf("  Jobs:        %d\n", view.Jobs)
	fmt.Printf("  Unparseable: %d\n\n", view.Unparseable)

	fmt.Println("🏭 Machines:")
	for _, m := range view.Machines {
		line := fmt.Sprintf("  Machine %d (%d ton)  week %3d%%  month %3d%%  overdue %d  ",
			m.ID, m.Tonnage, m.Weekly.Percent, m.Monthly.Percent, m.Overdue)
		switch m.Active.State {
		case analytics.StateProduction:
			line += fmt.Sprintf("🔄 %s %s until %s", m.Active.PartNo, m.Active.PartName, m.Active.End)
		case analytics.StateMaintenance:
			line += fmt.Sprintf("🔧 maintenance %s → %s", m.Active.Start, m.Active.End)
		default:
			line += "⏸  idle"
		}
		fmt.Println(line)
	}

	fmt.Println("\n⏱  Losses (hours):")
	for _, d := range view.Downtime {
		fmt.Printf("  Machine %d  downtime %.2f  idle %.2f  total %.2f\n",
			d.MachineID, d.RecordedDowntimeHours, d.IdleHours, d.TotalLossHours)
	}

	fmt.Println("\n📅 Timeline:")
	for _, m := range view.Timeline.Machines {
		fmt.Printf("  %s\n", m.Text)
		for _, j := range m.Jobs {
			flag := ""
			if j.Overdue {
				flag = "  ⚠️ overdue"
			}
			fmt.Printf("    %-28s %s → %s%s\n", j.Text, j.StartDate, j.EndDate, flag)
		}
	}
	if len(view.Timeline.Machines) == 0 {
		fmt.Println("  (empty)")
	}
}
