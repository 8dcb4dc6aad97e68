package storequery

import "fmt"

type pingResult struct {
	RequestID string `json:"request_id"`
}

type pingResponse struct {
	Result pingResult `json:"StoreQueryPingResult"`
}

// ping accepts one parameter (a caller-chosen request id) from any handler
// context, records it, and echoes it back verbatim.
func (d *Dispatcher) ping(cmd Command) (*Response, error) {
	if len(cmd.Params) != 1 {
		return nil, fmt.Errorf("%w: ping takes exactly one parameter", ErrBadParams)
	}
	d.lastPingID = cmd.Params[0]
	return jsonResponse(pingResponse{Result: pingResult{RequestID: cmd.Params[0]}})
}
