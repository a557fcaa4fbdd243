package redisqueue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zsims/atscale/internal/queue"
)

// receipt identifies one delivery of a stream entry to one consumer.
type receipt struct {
	entryID    string
	deliveries int64
	consumer   string
}

// String renders entryID/deliveries/consumer. The consumer goes last so it
// may itself contain slashes.
func (r receipt) String() string {
	return r.entryID + "/" + strconv.FormatInt(r.deliveries, 10) + "/" + r.consumer
}

func parseReceipt(handle string) (receipt, error) {
	parts := strings.SplitN(handle, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return receipt{}, fmt.Errorf("%w: malformed handle", queue.ErrInvalidReceipt)
	}
	deliveries, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || deliveries < 1 {
		return receipt{}, fmt.Errorf("%w: malformed handle", queue.ErrInvalidReceipt)
	}
	return receipt{entryID: parts[0], deliveries: deliveries, consumer: parts[2]}, nil
}
