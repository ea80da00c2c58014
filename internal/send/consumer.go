package send

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TypeSend is the asynq task type for send orders.
const TypeSend = "custodian:send"

const handleTimeout = 5 * time.Minute

// NewTask wraps a send request into an asynq task. Each task gets a fresh
// UUID so a crashed producer re-enqueueing the same order yields a distinct,
// individually traceable task.
func NewTask(req Request) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}
	return asynq.NewTask(TypeSend, payload, asynq.TaskID(uuid.NewString())), nil
}

// Consumer executes queued send orders through the engine.
type Consumer struct {
	engine *Engine
	logger *logrus.Logger
}

func NewConsumer(engine *Engine, logger *logrus.Logger) *Consumer {
	return &Consumer{
		engine: engine,
		logger: logger.WithField("pkg", "send.Consumer").Logger,
	}
}

func (c *Consumer) handle(ctx context.Context, t *asynq.Task) error {
	var req Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("failed to unmarshal send payload: %w", err)
	}

	res, err := c.engine.Send(ctx, req)
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"owner":  req.OwnerID,
		"chain":  res.Chain.String(),
		"model":  res.Model.String(),
		"hash":   res.Hash,
		"txHash": res.TxHash,
	}).Info("send order completed")
	return nil
}

// Handle runs one send order with a bounded deadline. A send may have been
// broadcast by the time an error surfaces, so failed orders are never
// requeued.
func (c *Consumer) Handle(ctx context.Context, t *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := c.handle(ctx, t)
	if err != nil {
		c.logger.WithError(err).Error("failed to handle send order")
		return asynq.SkipRetry
	}
	return nil
}
