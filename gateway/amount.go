package gateway

import "github.com/x402labs/devicegate/utils"

func minorUnits(human string, decimals int) (string, error) {
	n, err := utils.ToMinorUnits(human, decimals)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
