// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ens160_test

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/paolosabatino/ens160"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	dev, err := ens160.NewI2C(b, ens160.DefaultAddress, nil)
	if err != nil {
		log.Fatalf("failed to initialize ENS160: %v", err)
	}
	fmt.Printf("firmware: %s\n", dev.FirmwareVersion())

	if err := dev.SetMode(ens160.Standard); err != nil {
		log.Fatal(err)
	}
	// Put the device back into deep sleep on exit.
	defer dev.Halt()

	// The device produces one measurement per second; poll at our own pace
	// and print whatever arrives fresh.
	for i := 0; i < 10; i++ {
		var aq ens160.AirQuality
		ok, err := dev.Poll(&aq)
		if err != nil {
			log.Fatal(err)
		}
		if ok {
			fmt.Printf("%s (accuracy: %s)\n", aq.String(), dev.Accuracy())
		}
		time.Sleep(time.Second)
	}
}

// Example_interrupt wires the INTn pin of the device to a host GPIO and
// sleeps until the chip signals a fresh measurement instead of polling on a
// timer. The edge is only a wake-up hint: Poll's status check decides
// whether data is actually there.
func Example_interrupt() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	pin := gpioreg.ByName("GPIO6")
	if pin == nil {
		log.Fatal("no GPIO6 pin")
	}
	// Matches the chip-side configuration below: active low, open drain.
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		log.Fatal(err)
	}

	dev, err := ens160.NewI2C(b, ens160.DefaultAddress, nil)
	if err != nil {
		log.Fatalf("failed to initialize ENS160: %v", err)
	}
	err = dev.ConfigureInterrupt(ens160.IntConfig{
		Enable:    true,
		ActiveLow: true,
		OpenDrain: true,
		OnNewData: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.SetMode(ens160.Standard); err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()

	for {
		if !pin.WaitForEdge(-1) {
			continue
		}
		// One edge, one poll.
		var aq ens160.AirQuality
		ok, err := dev.Poll(&aq)
		if err != nil {
			log.Fatal(err)
		}
		if ok {
			fmt.Printf("%s\n", aq.String())
		}
	}
}
