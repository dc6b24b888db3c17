package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/celebration"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/feed"
)

// SimulateSale 将一条模拟销售与达标事件推入内存核心并打印结果，
// 不依赖任何外部服务。
func (a *App) SimulateSale(ctx context.Context, amount, goal decimal.Decimal) error {
	broker := bus.NewBroker(a.Config.Broadcaster.BufferSize, a.Logger)
	defer broker.Close()

	live := feed.New(a.Config.Feed.Capacity, broker, a.Logger)
	celebrations := celebration.NewQueue(celebration.Options{
		Capacity: a.Config.Celebration.Capacity,
		TTL:      a.Config.Celebration.TTL,
	}, broker, a.Logger)

	now := time.Now().UTC()
	sale := event.Sale{
		ID:         "simulated-sale",
		SellerName: "Simulated Seller",
		StoreName:  "Simulated Store",
		Amount:     amount,
		Goal:       goal,
		OccurredAt: now,
	}
	live.Push(feed.FromSale(sale))

	if goal.IsPositive() && amount.GreaterThanOrEqual(goal) {
		celebrations.OnGoalAchieved(event.GoalAchieved{
			CelebrationID: "simulated-goal",
			StoreName:     sale.StoreName,
			Achieved:      amount,
			Target:        goal,
			Percentage:    amount.Div(goal).Mul(decimal.NewFromInt(100)),
			OccurredAt:    now,
		})
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Feed rank\tSeller\tStore\tAmount\tGoal")
	for i, entry := range live.Entries() {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\n",
			i+1,
			entry.ActorName,
			entry.StoreName,
			entry.Amount.StringFixed(2),
			entry.Goal.StringFixed(2),
		)
	}
	writer.Flush()

	for _, n := range celebrations.Active() {
		fmt.Fprintf(
			os.Stdout,
			"celebration %s: %s reached %s of %s (%s%%), expires %s\n",
			n.ID,
			n.SubjectName,
			n.AchievedValue.StringFixed(2),
			n.TargetValue.StringFixed(2),
			n.Percentage.StringFixed(1),
			n.ExpiresAt.UTC().Format(time.RFC3339),
		)
	}

	return nil
}
