package status

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/evm"
)

// ReceiptSource reports on a submitted user operation. A nil receipt without
// error means the operation is still pending.
type ReceiptSource interface {
	GetUserOperationReceipt(ctx context.Context, opHash string) (*evm.UserOpReceipt, error)
}

// Outcome is what the poller could learn about an operation before giving
// up. Known false means the operation may still land; it is never reported
// as failed on timeout alone.
type Outcome struct {
	OpHash  string
	TxHash  string
	Known   bool
	Success bool
}

// Poller waits a bounded number of attempts for a user operation receipt.
type Poller struct {
	attempts int
	delay    time.Duration
	logger   *logrus.Logger
}

func NewPoller(attempts int, delay time.Duration, logger *logrus.Logger) *Poller {
	return &Poller{
		attempts: attempts,
		delay:    delay,
		logger:   logger.WithField("pkg", "status.Poller").Logger,
	}
}

// Await polls for the operation's receipt. Fetch errors count as a pending
// attempt; exhausting the attempts returns the operation hash alone with
// Known false.
func (p *Poller) Await(ctx context.Context, src ReceiptSource, opHash string) Outcome {
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return Outcome{OpHash: opHash}
			}
		}

		receipt, err := src.GetUserOperationReceipt(ctx, opHash)
		if err != nil {
			p.logger.WithError(err).WithField("opHash", opHash).Warn("receipt poll failed")
			continue
		}
		if receipt == nil {
			continue
		}

		return Outcome{
			OpHash:  opHash,
			TxHash:  receipt.Receipt.TransactionHash,
			Known:   true,
			Success: receipt.Success,
		}
	}

	p.logger.WithField("opHash", opHash).Info("operation status unknown after polling")
	return Outcome{OpHash: opHash}
}
