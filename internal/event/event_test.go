package event

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodeSale(t *testing.T) {
	payload := []byte(`{"id":"s-1","seller":"Maria","store":"Juru Centro","amount":"9000.50","goal":"150000","timestamp":"2025-03-01T12:00:00Z"}`)

	sale, err := DecodeSale(payload)
	if err != nil {
		t.Fatalf("合法载荷不应报错: %v", err)
	}
	if sale.StoreName != "Juru Centro" {
		t.Fatalf("store 解析错误: %q", sale.StoreName)
	}
	if !sale.Amount.Equal(decimal.RequireFromString("9000.50")) {
		t.Fatalf("amount 解析错误: %s", sale.Amount)
	}
}

func TestDecodeSaleRejectsNonPositiveAmount(t *testing.T) {
	if _, err := DecodeSale([]byte(`{"store":"Juru Centro","amount":"0"}`)); err == nil {
		t.Fatal("金额为零应在边界处被拒绝")
	}
}

func TestDecodeSaleFillsDefaults(t *testing.T) {
	sale, err := DecodeSale([]byte(`{"store":"Juru Centro","amount":"10"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sale.ID == "" {
		t.Fatal("缺少 id 时应自动生成")
	}
	if sale.OccurredAt.IsZero() {
		t.Fatal("缺少 timestamp 时应回退为当前时间")
	}
}

func TestDecodeGoalAchievedGeneratesCelebrationID(t *testing.T) {
	goal, err := DecodeGoalAchieved([]byte(`{"storeName":"Juru Centro","achieved":"120000","target":"100000"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if goal.CelebrationID == "" {
		t.Fatal("celebrationId 缺失时应生成 uuid")
	}
	if !goal.Percentage.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("percentage 应由 achieved/target 推导, 实际 %s", goal.Percentage)
	}
}

func TestDecodeGoalAchievedKeepsSuppliedID(t *testing.T) {
	goal, err := DecodeGoalAchieved([]byte(`{"storeName":"Juru Centro","achieved":"1","target":"1","celebrationId":"cel-7"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if goal.CelebrationID != "cel-7" {
		t.Fatalf("应保留调用方提供的 celebrationId, 实际 %q", goal.CelebrationID)
	}
}

func TestDecodeGoalAchievedMissingStore(t *testing.T) {
	if _, err := DecodeGoalAchieved([]byte(`{"achieved":"1"}`)); err == nil {
		t.Fatal("缺少 storeName 应报错")
	}
}
