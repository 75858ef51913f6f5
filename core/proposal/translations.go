package proposal

import (
	ut "github.com/go-playground/universal-translator"

	"github.com/trezcool/takharruj/core"
)

// Message keys for successful operations.
const (
	MsgSubmitted       = "proposal_submitted"
	MsgApproved        = "proposal_approved"
	MsgRejected        = "proposal_rejected"
	MsgSelected        = "proposal_selected"
	MsgDeleted         = "proposal_deleted"
	MsgProjectDeleted  = "project_deleted"
	MsgAutoRejected    = "proposal_auto_rejected"
	MsgStatusMailTitle = "proposal_status_mail_subject"

	msgMailApproved = "proposal_mail_approved"
	msgMailRejected = "proposal_mail_rejected"
	msgMailSelected = "proposal_mail_selected"
)

var messages = map[string]map[string]string{
	core.LangArabic: {
		ErrUnauthorized.Code:            "غير مصرح لك بتنفيذ هذا الإجراء",
		ErrAlreadyFinalized.Code:        "لقد اخترت مشروعك النهائي بالفعل ولا يمكنك تقديم مقترحات جديدة",
		ErrPreviouslyRejected.Code:      "تم رفض مقترحك لهذا المشروع سابقًا ولا يمكنك التقديم عليه مرة أخرى",
		ErrProjectReserved.Code:         "هذا المشروع محجوز لطالب آخر",
		ErrQuotaExceeded.Code:           "لقد وصلت إلى الحد الأقصى من المقترحات (3 مقترحات نشطة)",
		ErrDuplicateSubmission.Code:     "لقد قدمت مقترحًا لهذا المشروع بالفعل",
		ErrStudentAlreadyFinalized.Code: "لقد اختار هذا الطالب مشروعه النهائي بالفعل",
		ErrInvalidTransition.Code:       "لا يمكن تغيير حالة المقترح بهذا الشكل",

		MsgSubmitted:       "تم تقديم المقترح",
		MsgApproved:        "تمت الموافقة على مقترح الطالب",
		MsgRejected:        "تم رفض مقترح الطالب",
		MsgSelected:        "تم اختيار هذا المشروع كمشروعك النهائي",
		MsgDeleted:         "تم حذف المقترح بنجاح",
		MsgProjectDeleted:  "تم حذف المشروع بنجاح",
		MsgAutoRejected:    "تم رفض مقترحك تلقائيًا بعد اختيارك مشروعًا نهائيًا آخر.",
		MsgStatusMailTitle: "تحديث حالة المقترح",

		msgMailApproved: "تمت الموافقة على مقترحك. يمكنك الآن اختيار هذا المشروع كمشروعك النهائي.",
		msgMailRejected: "نأسف، تم رفض مقترحك.",
		msgMailSelected: "تم اختيار هذا المشروع كمشروعك النهائي.",
	},
	core.LangEnglish: {
		ErrUnauthorized.Code:            "You are not allowed to perform this action",
		ErrAlreadyFinalized.Code:        "You already selected your final project and cannot submit new proposals",
		ErrPreviouslyRejected.Code:      "Your proposal for this project was rejected before; you cannot apply again",
		ErrProjectReserved.Code:         "This project is reserved by another student",
		ErrQuotaExceeded.Code:           "You reached the maximum of 3 active proposals",
		ErrDuplicateSubmission.Code:     "You already submitted a proposal for this project",
		ErrStudentAlreadyFinalized.Code: "This student already selected a final project",
		ErrInvalidTransition.Code:       "This status change is not allowed",

		MsgSubmitted:       "Proposal submitted",
		MsgApproved:        "Student proposal approved",
		MsgRejected:        "Student proposal rejected",
		MsgSelected:        "This project is now your final project",
		MsgDeleted:         "Proposal deleted",
		MsgProjectDeleted:  "Project deleted",
		MsgAutoRejected:    "Your proposal was rejected automatically after you selected another final project.",
		MsgStatusMailTitle: "Proposal status update",

		msgMailApproved: "Your proposal was approved. You can now select this project as your final project.",
		msgMailRejected: "Sorry, your proposal was rejected.",
		msgMailSelected: "This project is now your final project.",
	},
}

// InitTranslations registers the violation and success messages on every supported locale.
func InitTranslations(uni *ut.UniversalTranslator) error {
	for lang, msgs := range messages {
		trans, found := uni.GetTranslator(lang)
		if !found {
			continue
		}
		if err := core.AddTranslations(trans, msgs); err != nil {
			return err
		}
	}
	return nil
}

// mailText returns the arabic text for key. Students are always mailed in arabic.
func mailText(key string) string {
	return messages[core.LangArabic][key]
}

// StatusMessageKey returns the message key announcing a new status, if any.
func StatusMessageKey(st Status) string {
	switch st {
	case StatusApproved:
		return MsgApproved
	case StatusRejected:
		return MsgRejected
	case StatusSelected:
		return MsgSelected
	}
	return ""
}
