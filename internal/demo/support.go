package demo

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// Issue types routed by the support scenario.
const (
	IssueBilling   = "billing"
	IssueTechnical = "technical"
	IssueGeneral   = "general"
)

// Customer is the cell of the support scenario.
type Customer struct {
	Name      string
	Premium   bool
	IssueType string
}

// Route sets IssueType from keywords in input.
func (c *Customer) Route(input string) {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "refund"):
		c.IssueType = IssueBilling
	case strings.Contains(lower, "restart"):
		c.IssueType = IssueTechnical
	default:
		c.IssueType = IssueGeneral
	}
}

// Apology is the verdict of the apology guardrail.
type Apology struct {
	HasApology bool `json:"has_apology" jsonschema:"description=True when the text contains words like sorry, apologies or regret"`
}

type refundArgs struct {
	Amount int    `json:"amount" jsonschema:"description=Refund amount in dollars"`
	Reason string `json:"reason" jsonschema:"description=Why the refund is issued"`
}

type restartArgs struct {
	ServiceName string `json:"service_name" jsonschema:"description=Name of the service to restart"`
}

var supportScenario = Scenario{
	Name:        "support",
	Description: "Triage agent handing off to billing or technical specialists with capability gated tools",
	Samples: []string{
		"I was double charged, please refund 20 dollars",
		"Please restart the email service, it is down",
		"How are you today?",
	},
	Build: func(d Deps) (*Setup, error) {
		ev, err := guardrail.NewAgentEvaluator[Apology]("Apology Guardrail", d.GuardModel,
			"Check if the output contains apology words like 'sorry', 'apologies', or 'regret'. Set has_apology=true if detected.")
		if err != nil {
			return nil, err
		}
		// Triage answers must apologise; the tripwire fires when no apology is found.
		apology := guardrail.FromAgent("apology_required", core.DirectionOutput, ev,
			func(v Apology) bool { return !v.HasApology })

		issueRefund := mustTool(tool.NewTypedTool("issue_refund", "Issues a refund to a premium user.",
			func(_ *core.ToolContext, args refundArgs) (any, error) {
				return fmt.Sprintf("Refund of $%d for '%s' has been processed.", args.Amount, args.Reason), nil
			},
			tool.WithPredicate(tool.When(func(c *Customer, _ core.AgentInfo) bool { return c.Premium })),
		))

		restartService := mustTool(tool.NewTypedTool("restart_service", "Restarts a technical service.",
			func(_ *core.ToolContext, args restartArgs) (any, error) {
				return fmt.Sprintf("The '%s' service has been restarted.", args.ServiceName), nil
			},
			tool.WithPredicate(tool.When(func(c *Customer, _ core.AgentInfo) bool { return c.IssueType == IssueTechnical })),
		))

		required := model.Settings{ToolChoice: model.ToolChoiceRequired}

		billing, err := agent.New("Billing Agent", func(o *agent.Options) {
			o.Description = "Handles refunds and payment questions"
			o.Instruction = agent.Fixed("You are a billing specialist. You can issue refunds to premium users.")
			o.Tools = []tool.Tool{issueRefund}
			o.Settings = required
		})
		if err != nil {
			return nil, err
		}

		technical, err := agent.New("Technical Agent", func(o *agent.Options) {
			o.Description = "Handles outages and service restarts"
			o.Instruction = agent.Fixed("You are a technical support specialist. You can restart services.")
			o.Tools = []tool.Tool{restartService}
			o.Settings = required
		})
		if err != nil {
			return nil, err
		}

		triage, err := agent.New("Triage Agent", func(o *agent.Options) {
			o.Instruction = agent.Fixed("You are a triage agent. Your job is to determine the user's issue and hand them off to the correct specialist.")
			o.Handoffs = []agent.Handoff{agent.HandoffTo(billing), agent.HandoffTo(technical)}
			o.OutputGuardrails = []*guardrail.Guardrail{apology}
		})
		if err != nil {
			return nil, err
		}

		cell := &Customer{Name: "Alishba", Premium: true, IssueType: IssueGeneral}

		return &Setup{Agent: triage, Cell: cell, Prepare: cell.Route}, nil
	},
}
