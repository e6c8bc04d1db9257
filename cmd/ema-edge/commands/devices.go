package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-edge/core/audio/miniaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	Long: `Lists the capture and playback devices miniaudio can open.

Use a name from the list as audio.capture_device or audio.playback_device.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := miniaudio.ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No audio devices found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tDEFAULT\tNAME")
		for _, device := range devices {
			kind := "playback"
			if device.Capture {
				kind = "capture"
			}
			isDefault := ""
			if device.IsDefault {
				isDefault = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", kind, isDefault, device.Name)
		}
		return w.Flush()
	},
}
