package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateAmount float64
	simulateGoal   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-sale",
	Short: "模拟一条销售事件并打印榜单与庆祝结果",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAmount <= 0 {
			return errors.New("--amount 必须大于 0")
		}

		amount := decimal.NewFromFloat(simulateAmount)
		goal := decimal.NewFromFloat(simulateGoal)
		return getApp().SimulateSale(cmd.Context(), amount, goal)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateAmount, "amount", 0, "销售金额")
	simulateCmd.Flags().Float64Var(&simulateGoal, "goal", 0, "门店目标（可选，达标时触发庆祝）")
}
