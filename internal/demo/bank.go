package demo

import (
	"fmt"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/tool"
)

// Account is the cell of the bank scenarios.
type Account struct {
	Name string
	Pin  int
}

// Authenticated reports whether the account holder passed the PIN check.
func (a *Account) Authenticated() bool { return a.Name == "Alishba" && a.Pin == 1234 }

// BankTopic is the verdict of the bank topic guardrail.
type BankTopic struct {
	IsBankRelated bool   `json:"is_bank_related" jsonschema:"description=True when the text is about banking"`
	Reasoning     string `json:"reasoning,omitempty" jsonschema:"description=Short explanation of the decision"`
}

type balanceArgs struct {
	AccountNumber string `json:"account_number" jsonschema:"description=The customer's account number"`
}

var authenticated = tool.When(func(a *Account, _ core.AgentInfo) bool { return a.Authenticated() })

func bankTopicGuardrail(d Deps, name string, dir core.Direction, instructions string) (*guardrail.Guardrail, error) {
	ev, err := guardrail.NewAgentEvaluator[BankTopic](name, d.GuardModel, instructions)
	if err != nil {
		return nil, err
	}
	return guardrail.FromAgent("bank_related_"+string(dir), dir, ev, func(v BankTopic) bool { return !v.IsBankRelated }), nil
}

var bankScenario = Scenario{
	Name:        "bank",
	Description: "Bank agent with a topic input guardrail and a PIN gated balance tool",
	Samples: []string{
		"I want to check my balance. My account number is 309473804",
		"What's the weather in Karachi?",
	},
	Build: func(d Deps) (*Setup, error) {
		topic, err := bankTopicGuardrail(d, "Guardrail Agent", core.DirectionInput,
			"Check if the user is asking you bank related queries.")
		if err != nil {
			return nil, err
		}

		checkBalance := mustTool(tool.NewTypedTool("check_balance", "Check the balance of a bank account",
			func(tc *core.ToolContext, args balanceArgs) (any, error) {
				tc.Logger().Info("bank.balance.checked", "account", args.AccountNumber)
				return fmt.Sprintf("The balance of account %s is $1000000", args.AccountNumber), nil
			},
			tool.WithPredicate(authenticated),
		))

		a, err := agent.New("Bank Agent", func(o *agent.Options) {
			o.Instruction = agent.Fixed("You are a bank agent. You help customers with their questions.")
			o.Tools = []tool.Tool{checkBalance}
			o.InputGuardrails = []*guardrail.Guardrail{topic}
		})
		if err != nil {
			return nil, err
		}

		return &Setup{Agent: a, Cell: &Account{Name: "Alishba", Pin: 1234}}, nil
	},
}
