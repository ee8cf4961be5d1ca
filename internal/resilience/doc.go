// Package resilience provides fault tolerance patterns for the worker.
//
// The package supports:
//   - Circuit breakers around each delivery channel and the ledger database
//   - Redelivery delay calculation and receive-loop backoff
//   - In-process retries for short idempotent queue calls
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ChannelConfig("email"))
//	receipt, err := circuitbreaker.Run(cb, func() (notifier.Receipt, error) {
//	    return sender.SendEmail(ctx, msg)
//	})
//
//	delay := retry.Delay(attempt, 5*time.Second, 5*time.Minute)
//	err := retry.WithBackoff(ctx, retry.QueueAckConfig(), func() error {
//	    return queue.Delete(ctx, receiptHandle)
//	})
package resilience
