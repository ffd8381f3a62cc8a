/*

This file contains the withdrawal queue bookkeeping. The queue owns every
WithdrawalRequest: created on redeem settlement, finalized on claim or
administrative cancellation, kept forever for audit.

*/

package engine

import (
	"sort"

	"github.com/keel-protocol/keel/internal/types"
)

// withdrawalQueue indexes in-flight and historical redemption requests by
// incrementing id and by requester. Callers hold the engine lock.
type withdrawalQueue struct {
	requests map[uint64]*types.WithdrawalRequest
	byUser   map[string][]uint64
	nextID   uint64
}

func newWithdrawalQueue() *withdrawalQueue {
	return &withdrawalQueue{
		requests: make(map[uint64]*types.WithdrawalRequest),
		byUser:   make(map[string][]uint64),
		nextID:   1,
	}
}

// add assigns the next id and indexes the request.
func (q *withdrawalQueue) add(req types.WithdrawalRequest) *types.WithdrawalRequest {
	req.ID = q.nextID
	q.nextID++
	stored := req
	q.requests[stored.ID] = &stored
	q.byUser[stored.Requester] = append(q.byUser[stored.Requester], stored.ID)
	return &stored
}

func (q *withdrawalQueue) get(id uint64) (*types.WithdrawalRequest, bool) {
	req, ok := q.requests[id]
	return req, ok
}

// forUser returns copies sorted by id.
func (q *withdrawalQueue) forUser(addr string) []types.WithdrawalRequest {
	ids := q.byUser[addr]
	out := make([]types.WithdrawalRequest, 0, len(ids))
	for _, id := range ids {
		if req, ok := q.requests[id]; ok {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (q *withdrawalQueue) countQueued() int {
	n := 0
	for _, req := range q.requests {
		if req.Status == types.WithdrawalQueued {
			n++
		}
	}
	return n
}
