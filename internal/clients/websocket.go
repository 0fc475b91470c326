package clients

import (
	"context"
	"fmt"

	"fee-ledger/internal/domain"
	ws "fee-ledger/internal/transport/websocket"
)

const (
	MessageLedgerUpdated  = "ledger_updated"
	MessagePaymentFailed  = "payment_failed"
	MessageLinkGenerated  = "payment_link_generated"
	MessageExportProgress = "export_progress"
	MessageExportComplete = "export_complete"
	MessageExportFailed   = "export_failed"
)

// WebSocketClient pushes ledger and export events to the terminals of a branch.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) send(branchID, typ, channel string, data map[string]interface{}) error {
	if c == nil || c.hub == nil {
		return nil
	}
	c.hub.Broadcast(branchID, &ws.Message{Type: typ, Channel: channel, Data: data})
	return nil
}

// NotifyLedgerUpdated tells terminals watching a student to refetch the ledger.
func (c *WebSocketClient) NotifyLedgerUpdated(ctx context.Context, branchID, studentID, receiptNumber string, summary domain.LedgerSummary) error {
	return c.send(branchID, MessageLedgerUpdated, "ledger#"+studentID, map[string]interface{}{
		"student_id":        studentID,
		"receipt_number":    receiptNumber,
		"total_paid":        summary.TotalPaid.StringFixed(2),
		"total_outstanding": summary.TotalOutstanding.StringFixed(2),
		"overdue_items":     summary.OverdueItems,
	})
}

func (c *WebSocketClient) NotifyPaymentFailed(ctx context.Context, branchID, studentID, gatewayRef, reason string) error {
	return c.send(branchID, MessagePaymentFailed, "ledger#"+studentID, map[string]interface{}{
		"student_id":  studentID,
		"gateway_ref": gatewayRef,
		"reason":      reason,
	})
}

func (c *WebSocketClient) NotifyLinkGenerated(ctx context.Context, branchID string, ev domain.LinkGenerated) error {
	return c.send(branchID, MessageLinkGenerated, "ledger#"+ev.StudentID, map[string]interface{}{
		"student_id": ev.StudentID,
		"link_id":    ev.LinkID,
		"url":        ev.URL,
		"amount":     ev.Amount.StringFixed(2),
	})
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, branchID, exportID string, progress float64, stage string) error {
	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	return c.send(branchID, MessageExportProgress, fmt.Sprintf("export_progress#%s", branchID), data)
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, branchID, exportID, url, filename string) error {
	return c.send(branchID, MessageExportComplete, fmt.Sprintf("export_complete#%s", branchID), map[string]interface{}{
		"id":       exportID,
		"url":      url,
		"filename": filename,
	})
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, branchID, exportID, errMsg string) error {
	return c.send(branchID, MessageExportFailed, fmt.Sprintf("export_failed#%s", branchID), map[string]interface{}{
		"id":      exportID,
		"message": errMsg,
	})
}
