// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ens160 controls a ScioSense ENS160 digital metal-oxide multi-gas
// sensor over I²C. The sensor reports an air quality index (UBA scale 1-5),
// a TVOC concentration in ppb and an equivalent CO2 concentration in ppm.
// The fusion of the raw hotplate resistances into those values happens on
// the chip itself; this driver manages the operating modes, the measurement
// cycle and the register decoding.
//
// The device measures only in Standard mode and needs a warm-up of about
// three minutes after entering it before readings are within the specified
// accuracy. A factory fresh sensor additionally goes through a one hour
// initial conditioning phase. Use Dev.Accuracy to qualify readings.
//
// The INTn pin of the chip can be programmed with Dev.ConfigureInterrupt to
// assert when a measurement is ready. Routing that pin to a host GPIO and
// waiting for edges is left to the caller; on each edge, call Dev.Poll once.
//
// **Datasheet:** https://www.sciosense.com/wp-content/uploads/2023/12/ENS160-Datasheet.pdf
package ens160
