package automation

import "github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"

// Response categories. Order in the catalog is match priority.
const (
	CategoryGreeting = "greeting"
	CategoryPricing  = "pricing"
	CategorySupport  = "support"
	CategoryHours    = "hours"
	CategoryLead     = "lead_qualification"
)

// DefaultCatalog returns the static trigger rules. First matched category
// wins; one auto-reply per incoming message.
func DefaultCatalog() []types.AutomationRule {
	return []types.AutomationRule{
		{
			Category:        CategoryGreeting,
			TriggerKeywords: []string{"hello", "hi there", "good morning", "good afternoon", "hey"},
			ResponseTemplates: []string{
				"Hello! Thanks for reaching out. How can we help you today?",
				"Hi! What can we do for you?",
			},
		},
		{
			Category:        CategoryPricing,
			TriggerKeywords: []string{"price", "pricing", "cost", "how much", "quote", "fees"},
			ResponseTemplates: []string{
				"Thanks for your interest in our plans. A team member will send you a detailed quote shortly.",
				"Our pricing depends on transaction volume. We'll follow up with a tailored quote.",
			},
		},
		{
			Category:        CategorySupport,
			TriggerKeywords: []string{"help", "support", "issue", "problem", "not working", "error"},
			ResponseTemplates: []string{
				"Sorry to hear you're running into trouble. Our support team has been notified and will get back to you.",
				"We've logged your request with support. Someone will be with you shortly.",
			},
		},
		{
			Category:        CategoryHours,
			TriggerKeywords: []string{"opening hours", "business hours", "when are you open", "what time"},
			ResponseTemplates: []string{
				"We're available Monday to Friday, 9:00 to 18:00.",
			},
		},
		{
			Category:        CategoryLead,
			TriggerKeywords: []string{"interested", "demo", "trial", "sales", "purchase", "buy", "upgrade"},
			ResponseTemplates: []string{
				"Great to hear you're interested! One of our sales specialists will reach out to you soon.",
			},
		},
	}
}

// NegativeSentimentKeywords trigger an escalation to administrators along
// with an empathetic reply.
func NegativeSentimentKeywords() []string {
	return []string{
		"angry", "terrible", "awful", "unacceptable", "disappointed",
		"frustrated", "cancel my account", "worst", "complaint", "refund",
	}
}

// EmpathyTemplate is the auto-reply sent alongside an escalation.
const EmpathyTemplate = "We're really sorry about your experience. A senior team member has been notified and will contact you personally."

// OutOfOfficeTemplate is appended outside the business-hours window.
const OutOfOfficeTemplate = "Thanks for your message! Our team is currently out of office. We'll get back to you during business hours."

// FollowUpTemplate is sent by the scheduled lead follow-up task.
const FollowUpTemplate = "Just checking back in. Is there anything else we can help you with?"
