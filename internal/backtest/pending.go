package backtest

import (
	"time"

	"tradecore/internal/common"
)

// pendingOrder tracks one order awaiting execution in the backtest loop,
// along with the wall-clock point at which its order_latency has elapsed
// and it becomes eligible to sweep.
type pendingOrder struct {
	order       *common.Order
	symbol      string
	submittedAt time.Time
	eligibleAt  time.Time
}
