package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/bridge"
)

func encodeBridgeCmd() *cobra.Command {
	var noForce bool

	cmd := &cobra.Command{
		Use:   "encode-bridge <direction> <address> <amount>",
		Short: "Print the bridge call data for a deposit",
		Long: `Print the hex call data sent to the bridge contract.

Direction is to_sepolia or to_moonveil. Amount is in ether.

Example:
  moonveil encode-bridge to_sepolia 0x3bdcA5C9B8b0D37dbb0B5C2D6EA1b7B2E8dC5E71 0.0001`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := encodeBridge(args[0], args[1], args[2], !noForce)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noForce, FlagNoForce, false, "Clear the force update flag")

	return cmd
}

func encodeBridge(direction, address, amount string, forceUpdate bool) (string, error) {
	dir, ok := bridge.DirectionByName(direction)
	if !ok {
		return "", fmt.Errorf("unknown direction %q", direction)
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	wei, err := chain.ParseEther(amount)
	if err != nil {
		return "", err
	}

	data, err := bridge.Encode(dir.DestinationID(), common.HexToAddress(address), wei, forceUpdate)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(data), nil
}
