package proposal

import (
	"context"
	"net/mail"
	"strconv"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/user"
)

const statusTemplate = "proposal_status"

var mailTexts = map[Status]string{
	StatusApproved: msgMailApproved,
	StatusRejected: msgMailRejected,
	StatusSelected: msgMailSelected,
}

type statusMailData struct {
	StudentName  string
	ProjectTitle string
	Status       Status
	Message      string
}

// notifier mails students when one of their proposals changes status.
// Failures are logged and never reach the caller.
type notifier struct {
	store   Store
	users   user.Repository
	mailSvc core.EmailService
	logger  core.Logger
}

func (n *notifier) statusChanged(ctx context.Context, p Proposal, auto bool) {
	if n.mailSvc == nil || n.users == nil {
		return
	}
	key, ok := mailTexts[p.Status]
	if !ok {
		return
	}
	if auto {
		key = MsgAutoRejected
	}

	usr, err := n.users.GetUser(ctx, p.StudentID)
	if err != nil {
		n.logger.Warn("proposal notification: getting student: "+err.Error(), err)
		return
	}
	if usr.Email == "" {
		return
	}
	prj, err := n.store.Projects().GetProject(ctx, p.ProjectID)
	if err != nil {
		n.logger.Warn("proposal notification: getting project: "+err.Error(), err)
		return
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      mailText(MsgStatusMailTitle),
		Category:     statusTemplate,
		Meta: map[string]string{
			"proposal_id": p.ID,
			"project_id":  p.ProjectID,
			"status":      string(p.Status),
			"auto":        strconv.FormatBool(auto),
		},
		TemplateName: statusTemplate,
		TemplateData: statusMailData{
			StudentName:  usr.DisplayName(),
			ProjectTitle: prj.Title,
			Status:       p.Status,
			Message:      mailText(key),
		},
	})
}
