package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Choice 出拳选项（闭集）
type Choice string

const (
	ChoiceRock     Choice = "rock"
	ChoicePaper    Choice = "paper"
	ChoiceScissors Choice = "scissors"
)

// Outcome 单局结果（以玩家视角）
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// 环形克制关系：石头克剪刀，剪刀克布，布克石头
var beats = map[Choice]Choice{
	ChoiceRock:     ChoiceScissors,
	ChoiceScissors: ChoicePaper,
	ChoicePaper:    ChoiceRock,
}

var allChoices = []Choice{ChoiceRock, ChoicePaper, ChoiceScissors}

// ParseChoice 校验并归一化出拳输入，闭集外一律报错
func ParseChoice(s string) (Choice, error) {
	c := Choice(s)
	if _, ok := beats[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

// ResolveOutcome 纯函数：对 3×3 全输入空间封闭，无状态无副作用
func ResolveOutcome(player, opponent Choice) (Outcome, error) {
	if _, ok := beats[player]; !ok {
		return "", fmt.Errorf("%w: player %q", ErrInvalidChoice, player)
	}
	if _, ok := beats[opponent]; !ok {
		return "", fmt.Errorf("%w: opponent %q", ErrInvalidChoice, opponent)
	}
	if player == opponent {
		return OutcomeTie, nil
	}
	if beats[player] == opponent {
		return OutcomeWin, nil
	}
	return OutcomeLoss, nil
}

// RandomChoice 服务端生成对手出拳
// 必须用 crypto/rand：出拳对提交方不可预测，防止刷赢操纵余额
func RandomChoice() (Choice, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(allChoices))))
	if err != nil {
		return "", err
	}
	return allChoices[n.Int64()], nil
}
