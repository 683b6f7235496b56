package redisstore

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	locationPrefix = "location:"
	geoSetKey      = "couriers:geo"
)

func locationKey(courierID int64) string { return locationPrefix + strconv.FormatInt(courierID, 10) }

func claimKey(orderID int64) string { return fmt.Sprintf("order_%d_taken", orderID) }

func rejectionKey(orderID, courierID int64) string {
	return fmt.Sprintf("order_%d_rejected_by_%d", orderID, courierID)
}

func rejectionPattern(orderID int64) string { return fmt.Sprintf("order_%d_rejected_by_*", orderID) }

func signalChannel(orderID int64) string { return fmt.Sprintf("order_%d_signals", orderID) }

// LocationSentKey throttles raw location broadcasts of a courier.
func LocationSentKey(courierID int64) string { return fmt.Sprintf("loc_sent:%d:5s", courierID) }

// DurationSentKey throttles duration broadcasts of a courier.
func DurationSentKey(courierID int64) string { return fmt.Sprintf("duration_sent:%d", courierID) }

// DurationPosKey stores where the last duration broadcast was computed.
func DurationPosKey(courierID int64) string { return fmt.Sprintf("duration_pos:%d", courierID) }

func courierIDFromLocationKey(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, locationPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}
