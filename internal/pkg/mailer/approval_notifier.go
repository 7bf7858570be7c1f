package mailer

import "ai-orchestrator-be/internal/pkg/logger"

// ApprovalNotifier bridges the orchestrator's notification hook to the
// email service. A configured approver address overrides the per-user
// recipient; otherwise the user id doubles as the address, matching the
// single-tenant deployment.
type ApprovalNotifier struct {
	email      IEmailService
	approverTo string
	logger     logger.ILogger
}

func NewApprovalNotifier(email IEmailService, approverTo string, log logger.ILogger) *ApprovalNotifier {
	return &ApprovalNotifier{email: email, approverTo: approverTo, logger: log}
}

func (n *ApprovalNotifier) NotifyApprovalPending(userID, sessionID, riskLevel string) error {
	if n.email == nil {
		return nil
	}
	recipient := n.approverTo
	if recipient == "" {
		recipient = userID
	}
	err := n.email.SendApprovalPending(recipient, sessionID, riskLevel)
	if err != nil && n.logger != nil {
		n.logger.Warn("Mailer", "Approval email failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	return err
}
